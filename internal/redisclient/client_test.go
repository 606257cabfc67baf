package redisclient

import (
	"context"
	"testing"
	"time"

	"workshop-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestClaimIsExclusive(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	prev, claimed, err := c.Claim(ctx, "payment:1:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, prev)

	prev, claimed, err = c.Claim(ctx, "payment:1:abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, Pending, prev)
}

func TestCompleteStoresResult(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, "k", "42", time.Minute))

	prev, claimed, err := c.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "42", prev)
	assert.True(t, mr.TTL("idempotency:k") > 0)
}

func TestAbandonOnlyDropsPending(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.Claim(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Abandon(ctx, "a"))
	assert.False(t, mr.Exists("idempotency:a"))

	_, _, err = c.Claim(ctx, "b", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, "b", "7", time.Minute))
	require.NoError(t, c.Abandon(ctx, "b"))
	got, err := mr.Get("idempotency:b")
	require.NoError(t, err)
	assert.Equal(t, "7", got)
}

func TestClaimExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, _, err := c.Claim(ctx, "ttl", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, claimed, err := c.Claim(ctx, "ttl", time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestStockLevelRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetStockLevel(ctx, 1, 9)
	assert.ErrorIs(t, err, ErrStockNotCached)

	item := models.InventoryItem{ID: 9, OrganizationID: 1, CurrentStock: 10, AllocatedStock: 4, ReorderLevel: 3}
	require.NoError(t, c.SetStockLevel(ctx, item))

	lvl, err := c.GetStockLevel(ctx, 1, 9)
	require.NoError(t, err)
	assert.Equal(t, StockLevel{Current: 10, Allocated: 4, Available: 6, ReorderLevel: 3}, lvl)
}

func TestLock(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "autobill:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "autobill:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "autobill:1"))
	ok, err = c.AcquireLock(ctx, "autobill:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
