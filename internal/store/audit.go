package store

import (
	"context"

	"workshop-service/internal/models"
)

// ListStatusLog returns the transitions of a quotation oldest first.
func (s *Store) ListStatusLog(ctx context.Context, orgID, quotationID int64) ([]models.StatusLogEntry, error) {
	var entries []models.StatusLogEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM quotation_status_log WHERE quotation_id = $1 AND organization_id = $2 ORDER BY id",
		quotationID, orgID)
	return entries, err
}

// ListHistory returns audit rows of one entity oldest first.
func (s *Store) ListHistory(ctx context.Context, orgID int64, entityType string, entityID int64) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM history_log
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY id`,
		orgID, entityType, entityID)
	return entries, err
}

func (t *txStore) InsertStatusLog(ctx context.Context, e *models.StatusLogEntry) error {
	return t.tx.QueryRowxContext(ctx, `
		INSERT INTO quotation_status_log (organization_id, quotation_id, from_status, to_status, changed_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		e.OrganizationID, e.QuotationID, e.FromStatus, e.ToStatus, e.ChangedBy, e.Notes).
		Scan(&e.ID, &e.CreatedAt)
}

func (t *txStore) InsertHistory(ctx context.Context, e *models.HistoryEntry) error {
	return t.tx.QueryRowxContext(ctx, `
		INSERT INTO history_log (organization_id, entity_type, entity_id, action, field_name,
			old_value, new_value, notes, actor_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		e.OrganizationID, e.EntityType, e.EntityID, e.Action, e.FieldName,
		e.OldValue, e.NewValue, e.Notes, e.ActorID, e.IPAddress, e.UserAgent).
		Scan(&e.ID, &e.CreatedAt)
}

func (t *txStore) InsertActivity(ctx context.Context, e *models.ActivityEntry) error {
	return t.tx.QueryRowxContext(ctx, `
		INSERT INTO activity_log (organization_id, user_id, action, description, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		e.OrganizationID, e.UserID, e.Action, e.Description, e.IPAddress, e.UserAgent).
		Scan(&e.ID, &e.CreatedAt)
}
