package changelog

import (
	"context"
	"database/sql"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// TombstoneStore persists hard-delete tombstones. The table keeps at most
// one row per entity id so replaying deletions stays idempotent.
type TombstoneStore struct {
	db *sql.DB
}

// NewTombstoneStore creates a tombstone store on db.
func NewTombstoneStore(db *sql.DB) *TombstoneStore {
	return &TombstoneStore{db: db}
}

// CreateTx upserts a tombstone inside the caller's transaction. A second
// tombstone for the same entity keeps whichever has the later DeletedAt, so
// applying the same deletion from several devices converges.
func (s *TombstoneStore) CreateTx(ctx context.Context, tx *sql.Tx, t *models.Tombstone) error {
	if t.EntityID == "" || t.EntityType == "" {
		return apperrors.New(apperrors.ErrValidation, "tombstone missing entity id or type")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tombstones (id, entity_id, entity_type, deleted_by, deleted_by_device_id, deleted_at, operation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			deleted_by = excluded.deleted_by,
			deleted_by_device_id = excluded.deleted_by_device_id,
			deleted_at = excluded.deleted_at,
			operation_id = excluded.operation_id
		WHERE excluded.deleted_at > tombstones.deleted_at`,
		t.ID, t.EntityID, t.EntityType, t.DeletedBy, nullUUID(t.DeletedByDeviceID), t.DeletedAt, t.OperationID,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert tombstone", err)
	}
	return nil
}

// Create upserts a tombstone in its own transaction.
func (s *TombstoneStore) Create(ctx context.Context, t *models.Tombstone) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()
	if err := s.CreateTx(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to commit tombstone", err)
	}
	return nil
}

// FindByEntityID returns the tombstone for entityID if one exists.
func (s *TombstoneStore) FindByEntityID(ctx context.Context, entityID models.UUID) (*models.Tombstone, bool, error) {
	var (
		t      models.Tombstone
		device sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, entity_type, deleted_by, deleted_by_device_id, deleted_at, operation_id
		FROM tombstones WHERE entity_id = ?`,
		entityID,
	).Scan(&t.ID, &t.EntityID, &t.EntityType, &t.DeletedBy, &device, &t.DeletedAt, &t.OperationID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to query tombstone", err)
	}
	t.DeletedByDeviceID = models.UUID(device.String)
	return &t, true, nil
}

// ListByEntityType returns all tombstones for one entity table, newest first.
func (s *TombstoneStore) ListByEntityType(ctx context.Context, entityType string) ([]*models.Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, entity_type, deleted_by, deleted_by_device_id, deleted_at, operation_id
		FROM tombstones WHERE entity_type = ?
		ORDER BY deleted_at DESC`,
		entityType,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query tombstones", err)
	}
	defer rows.Close()

	var out []*models.Tombstone
	for rows.Next() {
		var (
			t      models.Tombstone
			device sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.EntityID, &t.EntityType, &t.DeletedBy, &device, &t.DeletedAt, &t.OperationID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan tombstone", err)
		}
		t.DeletedByDeviceID = models.UUID(device.String)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate tombstones", err)
	}
	return out, nil
}
