package service

import (
	"context"
	"fmt"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"go.uber.org/zap"
)

// SequenceGenerator issues per-organization, per-year document numbers such
// as QT-2025-0042.
type SequenceGenerator struct {
	repo        store.Repository
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewSequenceGenerator creates a generator. Standalone issuance is tried
// maxAttempts times with exponential backoff starting at backoff.
func NewSequenceGenerator(repo store.Repository, maxAttempts int, backoff time.Duration) *SequenceGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SequenceGenerator{
		repo:        repo,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      util.GetLogger(),
	}
}

// FormatNumber renders prefix-year-NNNN. Numbers above 9999 keep all digits.
func FormatNumber(prefix string, year, n int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, n)
}

// NextNumber issues a number outside any business transaction. Transient
// store failures are retried; when every attempt fails the caller gets a
// persistence error and no number.
func (g *SequenceGenerator) NextNumber(ctx context.Context, orgID int64, year int, kind models.SequenceKind) (string, error) {
	if !kind.Valid() {
		return "", apperr.Validation("unknown sequence kind %q", kind)
	}
	start := time.Now()
	defer func() {
		util.SequenceIssueLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	prefix, err := g.repo.DocumentPrefix(ctx, orgID, kind)
	if err != nil {
		return "", apperr.Persistence("sequence prefix", err)
	}

	delay := g.backoff
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		n, err := g.repo.NextSequence(ctx, orgID, kind, year)
		if err == nil {
			return FormatNumber(prefix, year, n), nil
		}
		lastErr = err
		if attempt == g.maxAttempts {
			break
		}

		util.SequenceRetriesTotal.WithLabelValues(string(kind)).Inc()
		g.logger.Warn("Sequence issue failed, retrying",
			zap.Int64("org_id", orgID),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", apperr.Persistence("next sequence", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", apperr.Persistence("next sequence", lastErr)
}

// issue draws the next number on tx, so a rollback of the business
// transaction also rolls the counter back.
func (g *SequenceGenerator) issue(ctx context.Context, tx store.Tx, orgID int64, year int, kind models.SequenceKind) (string, error) {
	prefix, err := tx.DocumentPrefix(ctx, orgID, kind)
	if err != nil {
		return "", err
	}
	n, err := tx.NextSequence(ctx, orgID, kind, year)
	if err != nil {
		return "", err
	}
	return FormatNumber(prefix, year, n), nil
}
