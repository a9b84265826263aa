package changelog

import (
	"context"
	"database/sql"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// ConflictStore records remote updates that lost last-write-wins. Purely
// informational; nothing reads these rows back during merging.
type ConflictStore struct {
	db *sql.DB
}

// NewConflictStore creates a conflict store on db.
func NewConflictStore(db *sql.DB) *ConflictStore {
	return &ConflictStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Record inserts one conflict row.
func (s *ConflictStore) Record(ctx context.Context, c *models.ConflictLog) error {
	return s.record(ctx, s.db, c)
}

// RecordTx inserts one conflict row inside the caller's transaction.
func (s *ConflictStore) RecordTx(ctx context.Context, tx *sql.Tx, c *models.ConflictLog) error {
	return s.record(ctx, tx, c)
}

func (s *ConflictStore) record(ctx context.Context, e execer, c *models.ConflictLog) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO conflict_log (id, entity_table, entity_id, local_version, remote_version,
			remote_user_id, remote_device_id, resolution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EntityTable, c.EntityID, c.LocalVersion, c.RemoteVersion,
		nullUUID(c.RemoteUserID), nullUUID(c.RemoteDevice), c.Resolution, c.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to record conflict", err)
	}
	return nil
}

// ListByEntity returns conflicts recorded for one entity, newest first.
func (s *ConflictStore) ListByEntity(ctx context.Context, table string, entityID models.UUID) ([]*models.ConflictLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_table, entity_id, local_version, remote_version,
			remote_user_id, remote_device_id, resolution, created_at
		FROM conflict_log
		WHERE entity_table = ? AND entity_id = ?
		ORDER BY created_at DESC`,
		table, entityID,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query conflict log", err)
	}
	defer rows.Close()

	var out []*models.ConflictLog
	for rows.Next() {
		var (
			c            models.ConflictLog
			remoteUser   sql.NullString
			remoteDevice sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.EntityTable, &c.EntityID, &c.LocalVersion, &c.RemoteVersion,
			&remoteUser, &remoteDevice, &c.Resolution, &c.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan conflict row", err)
		}
		c.RemoteUserID = models.UUID(remoteUser.String)
		c.RemoteDevice = models.UUID(remoteDevice.String)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate conflict rows", err)
	}
	return out, nil
}
