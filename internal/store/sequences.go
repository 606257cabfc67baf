package store

import (
	"context"

	"workshop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// The upsert takes the row lock, so concurrent callers for the same
// (organization, kind, year) queue up and each sees its own increment.
const nextSequenceQuery = `
	INSERT INTO document_sequences (organization_id, kind, year, last_number)
	VALUES ($1, $2, $3, 1)
	ON CONFLICT (organization_id, kind, year)
	DO UPDATE SET last_number = document_sequences.last_number + 1, updated_at = NOW()
	RETURNING last_number`

func nextSequence(ctx context.Context, q sqlx.QueryerContext, orgID int64, kind models.SequenceKind, year int) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, nextSequenceQuery, orgID, kind, year)
	return n, err
}

func documentPrefix(ctx context.Context, q sqlx.QueryerContext, orgID int64, kind models.SequenceKind) (string, error) {
	var prefix string
	found, err := findOne(ctx, q, &prefix,
		"SELECT prefix FROM document_prefixes WHERE organization_id = $1 AND kind = $2", orgID, kind)
	if err != nil {
		return "", err
	}
	if !found || prefix == "" {
		return kind.DefaultPrefix(), nil
	}
	return prefix, nil
}

// NextSequence increments the counter in an implicit transaction of its own.
func (s *Store) NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error) {
	return nextSequence(ctx, s.db, orgID, kind, year)
}

// NextSequence increments the counter inside the caller's transaction. A
// rollback leaves no gap.
func (t *txStore) NextSequence(ctx context.Context, orgID int64, kind models.SequenceKind, year int) (int, error) {
	return nextSequence(ctx, t.tx, orgID, kind, year)
}

// DocumentPrefix returns the configured prefix or the kind's default.
func (s *Store) DocumentPrefix(ctx context.Context, orgID int64, kind models.SequenceKind) (string, error) {
	return documentPrefix(ctx, s.db, orgID, kind)
}

func (t *txStore) DocumentPrefix(ctx context.Context, orgID int64, kind models.SequenceKind) (string, error) {
	return documentPrefix(ctx, t.tx, orgID, kind)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
