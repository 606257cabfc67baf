package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"workshop-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_idempotency.lua
var claimIdempotencyScript string

//go:embed scripts/release_if_pending.lua
var releaseIfPendingScript string

// Pending is the marker held by an idempotency key while its request runs.
const Pending = "pending"

// ErrStockNotCached is returned when no stock snapshot exists for an item.
var ErrStockNotCached = errors.New("stock level not cached")

type Client struct {
	rdb           *redis.Client
	claimScript   *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		claimScript:   redis.NewScript(claimIdempotencyScript),
		releaseScript: redis.NewScript(releaseIfPendingScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping is used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Claim atomically marks key as pending. When the key already exists it
// returns claimed=false and the stored value, which is Pending while the
// first request is still running.
func (c *Client) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	result, err := c.claimScript.Run(ctx, c.rdb, []string{idempotencyKey(key)}, ttl.Milliseconds()).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency script failed: %w", err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", false, fmt.Errorf("unexpected script result type")
	}
	if claimed, _ := parts[0].(int64); claimed == 1 {
		return "", true, nil
	}

	var prev string
	if len(parts) > 1 {
		prev, _ = parts[1].(string)
	}
	return prev, false, nil
}

// Complete replaces the pending marker with the request's result.
func (c *Client) Complete(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// Abandon frees a claimed key after a failed request so the client may retry.
func (c *Client) Abandon(ctx context.Context, key string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{idempotencyKey(key)}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency script failed: %w", err)
	}
	return nil
}

func stockKey(orgID, itemID int64) string {
	return fmt.Sprintf("stock:%d:%d", orgID, itemID)
}

// SetStockLevel caches the committed counters of an item.
func (c *Client) SetStockLevel(ctx context.Context, item models.InventoryItem) error {
	key := stockKey(item.OrganizationID, item.ID)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"current", item.CurrentStock,
		"allocated", item.AllocatedStock,
		"available", item.AvailableStock(),
		"reorder_level", item.ReorderLevel,
	)
	pipe.Expire(ctx, key, time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}

// StockLevel is a cached snapshot of an item's counters.
type StockLevel struct {
	Current      int `json:"current"`
	Allocated    int `json:"allocated"`
	Available    int `json:"available"`
	ReorderLevel int `json:"reorder_level"`
}

// GetStockLevel reads the cached counters of an item.
func (c *Client) GetStockLevel(ctx context.Context, orgID, itemID int64) (StockLevel, error) {
	result, err := c.rdb.HGetAll(ctx, stockKey(orgID, itemID)).Result()
	if err != nil {
		return StockLevel{}, err
	}
	if len(result) == 0 {
		return StockLevel{}, ErrStockNotCached
	}

	var lvl StockLevel
	for field, dst := range map[string]*int{
		"current":       &lvl.Current,
		"allocated":     &lvl.Allocated,
		"available":     &lvl.Available,
		"reorder_level": &lvl.ReorderLevel,
	} {
		n, err := strconv.Atoi(result[field])
		if err != nil {
			return StockLevel{}, fmt.Errorf("stock field %s: %w", field, err)
		}
		*dst = n
	}
	return lvl, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
