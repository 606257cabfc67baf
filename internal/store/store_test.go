package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}
	s, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestUniqueViolationMapsToDuplicate(t *testing.T) {
	err := uniqueViolation(&pq.Error{Code: "23505"}, "bill")

	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))
	assert.Equal(t, "bill already exists", err.Error())
}

func TestUniqueViolationPassesOtherErrors(t *testing.T) {
	other := &pq.Error{Code: "23503"}
	assert.Same(t, other, uniqueViolation(other, "bill"))
	assert.NoError(t, uniqueViolation(nil, "bill"))
}

func TestMigrationsEmbedded(t *testing.T) {
	body, err := migrations.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS document_sequences")
	assert.Contains(t, string(body), "CHECK (current_stock - allocated_stock >= 0)")
}

func TestNextSequenceIncrements(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	org := time.Now().UnixNano()

	first, err := s.NextSequence(ctx, org, models.SequenceQuotation, 2025)
	require.NoError(t, err)
	second, err := s.NextSequence(ctx, org, models.SequenceQuotation, 2025)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestRolledBackSequenceLeavesNoGap(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	org := time.Now().UnixNano()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.NextSequence(ctx, org, models.SequenceBill, 2025)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.NextSequence(ctx, org, models.SequenceBill, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGuardedStatusUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	org := time.Now().UnixNano()

	q := &models.Quotation{
		OrganizationID:    org,
		QuotationNumber:   "QT-2025-0001",
		Customer:          models.Customer{Name: "Asha"},
		Priority:          models.PriorityMedium,
		BaseServiceCharge: decimal.NewFromInt(5000),
		Status:            models.StatusPending,
		CreatedBy:         1,
	}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertQuotation(ctx, q)
	}))

	stamp := models.StatusStamp{From: models.StatusPending, To: models.StatusSent, At: time.Now()}
	var first, second bool
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		first, err = tx.UpdateQuotationStatus(ctx, org, q.ID, stamp)
		if err != nil {
			return err
		}
		second, err = tx.UpdateQuotationStatus(ctx, org, q.ID, stamp)
		return err
	}))
	assert.True(t, first)
	assert.False(t, second)

	got, err := s.GetQuotation(ctx, org, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, got.Status)
	assert.NotNil(t, got.SentAt)

	_, err = s.GetQuotation(ctx, org+1, q.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
