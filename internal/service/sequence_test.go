package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/store"
	"workshop-service/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "QT-2025-0001", FormatNumber("QT", 2025, 1))
	assert.Equal(t, "INV-2025-0420", FormatNumber("INV", 2025, 420))
	assert.Equal(t, "QT-2025-12345", FormatNumber("QT", 2025, 12345))
}

func TestConcurrentNextNumberIsUnique(t *testing.T) {
	repo := memstore.New()
	gen := NewSequenceGenerator(repo, 3, time.Millisecond)

	const calls = 100
	numbers := make([]string, calls)
	var g errgroup.Group
	for i := 0; i < calls; i++ {
		i := i
		g.Go(func() error {
			n, err := gen.NextNumber(context.Background(), 1, 2025, models.SequenceQuotation)
			numbers[i] = n
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, calls)
	for _, n := range numbers {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	for i := 1; i <= calls; i++ {
		assert.True(t, seen[FormatNumber("QT", 2025, i)])
	}
}

func TestNextNumberIsScopedByOrganizationAndYear(t *testing.T) {
	repo := memstore.New()
	repo.SetPrefix(2, models.SequenceBill, "BILL")
	gen := NewSequenceGenerator(repo, 1, 0)
	ctx := context.Background()

	for _, tc := range []struct {
		org  int64
		year int
		kind models.SequenceKind
		want string
	}{
		{1, 2025, models.SequenceQuotation, "QT-2025-0001"},
		{1, 2025, models.SequenceQuotation, "QT-2025-0002"},
		{1, 2026, models.SequenceQuotation, "QT-2026-0001"},
		{2, 2025, models.SequenceQuotation, "QT-2025-0001"},
		{2, 2025, models.SequenceBill, "BILL-2025-0001"},
		{1, 2025, models.SequencePayment, "TXN-2025-0001"},
	} {
		got, err := gen.NextNumber(ctx, tc.org, tc.year, tc.kind)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := gen.NextNumber(ctx, 1, 2025, "receipt")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// flakyRepo fails the first failures standalone increments.
type flakyRepo struct {
	*memstore.Store
	failures int32
	calls    int32
}

func (r *flakyRepo) NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error) {
	if atomic.AddInt32(&r.calls, 1) <= r.failures {
		return 0, errors.New("connection reset by peer")
	}
	return r.Store.NextSequence(ctx, orgID, kind, year)
}

func TestNextNumberRetriesTransientFailures(t *testing.T) {
	repo := &flakyRepo{Store: memstore.New(), failures: 2}
	gen := NewSequenceGenerator(repo, 3, time.Millisecond)

	n, err := gen.NextNumber(context.Background(), 1, 2025, models.SequenceQuotation)
	require.NoError(t, err)
	assert.Equal(t, "QT-2025-0001", n)
	assert.Equal(t, int32(3), repo.calls)
}

func TestNextNumberFailsLoudly(t *testing.T) {
	repo := &flakyRepo{Store: memstore.New(), failures: 100}
	gen := NewSequenceGenerator(repo, 3, time.Millisecond)

	n, err := gen.NextNumber(context.Background(), 1, 2025, models.SequenceQuotation)
	assert.Empty(t, n)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Equal(t, "temporarily unavailable, please retry", apperr.PublicMessage(err))
	assert.Equal(t, int32(3), repo.calls)
}

func TestIssueRollsBackWithTransaction(t *testing.T) {
	repo := memstore.New()
	gen := NewSequenceGenerator(repo, 1, 0)
	ctx := context.Background()
	boom := errors.New("insert failed")

	err := repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := gen.issue(ctx, tx, 1, 2025, models.SequenceBill)
		require.NoError(t, err)
		assert.Equal(t, "INV-2025-0001", n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := gen.issue(ctx, tx, 1, 2025, models.SequenceBill)
		assert.Equal(t, "INV-2025-0001", n)
		return err
	})
	require.NoError(t, err)
}
