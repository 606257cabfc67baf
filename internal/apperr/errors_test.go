package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreconditionMatchesSentinel(t *testing.T) {
	err := Precondition(ErrInsufficientStock, "insufficient stock: available %d", 3)

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, KindPrecondition, KindOf(err))
	assert.Equal(t, "insufficient stock: available 3", PublicMessage(err))
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	nf := NotFound("quotation", 7)
	wrapped := fmt.Errorf("load: %w", nf)

	assert.Equal(t, wrapped, Wrap("op", wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestPersistenceHidesInternals(t *testing.T) {
	err := Wrap("billing.record_payment", errors.New("pq: connection refused"))

	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, "temporarily unavailable, please retry", PublicMessage(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, Wrap("noop", nil))
}
