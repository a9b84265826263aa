// Package changelog persists the append-only mutation ledger, tombstones for
// hard deletes, and the informational conflict log.
package changelog

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// Store reads and writes change_log rows. Entries are append-only; after
// insertion only the sync bookkeeping columns ever change.
type Store struct {
	db *sql.DB
}

// NewStore creates a change log store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const changeLogColumns = `operation_id, entity_table, entity_id, operation_type, field_name,
	old_value, new_value, timestamp, user_id, device_id, sync_batch_id, processed_at, sync_error`

// AppendTx inserts one entry inside the caller's transaction, so the entry
// commits or rolls back together with the row mutation it describes.
func (s *Store) AppendTx(ctx context.Context, tx *sql.Tx, e *models.ChangeLogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO change_log (`+changeLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OperationID, e.EntityTable, e.EntityID, string(e.OperationType),
		nullString(e.FieldName), nullBytes(e.OldValue), nullBytes(e.NewValue),
		e.Timestamp, e.UserID, nullUUID(e.DeviceID),
		nullUUID(e.SyncBatchID), nullInt64(e.ProcessedAt), nullString(e.SyncError),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to append change log entry", err)
	}
	return nil
}

// Append inserts one entry in its own transaction.
func (s *Store) Append(ctx context.Context, e *models.ChangeLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()
	if err := s.AppendTx(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to commit change log entry", err)
	}
	return nil
}

// FindByEntity returns every entry recorded for one entity, oldest first.
func (s *Store) FindByEntity(ctx context.Context, table string, entityID models.UUID) ([]*models.ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+changeLogColumns+`
		FROM change_log
		WHERE entity_table = ? AND entity_id = ?
		ORDER BY timestamp, rowid`,
		table, entityID,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query change log", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListUnsynced returns entries not yet assigned to a sync batch, in local
// creation order. limit <= 0 means no limit.
func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]*models.ChangeLogEntry, error) {
	query := `
		SELECT ` + changeLogColumns + `
		FROM change_log
		WHERE sync_batch_id IS NULL
		ORDER BY timestamp, rowid`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query unsynced entries", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountUnsynced returns how many entries still await upload.
func (s *Store) CountUnsynced(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_log WHERE sync_batch_id IS NULL`).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to count unsynced entries", err)
	}
	return n, nil
}

// MarkProcessed stamps the given operations as shipped in batchID.
func (s *Store) MarkProcessed(ctx context.Context, operationIDs []models.UUID, batchID models.UUID) error {
	if len(operationIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(operationIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{batchID, models.NowMillis()}
	for _, id := range operationIDs {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE change_log
		SET sync_batch_id = ?, processed_at = ?, sync_error = NULL
		WHERE operation_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to mark entries processed", err)
	}
	return nil
}

// MarkSyncError records why shipping one operation failed. The entry stays
// unsynced and is retried on the next batch.
func (s *Store) MarkSyncError(ctx context.Context, operationID models.UUID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE change_log SET sync_error = ? WHERE operation_id = ?`,
		message, operationID,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to mark sync error", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "change log entry %s not found", operationID)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]*models.ChangeLogEntry, error) {
	var entries []*models.ChangeLogEntry
	for rows.Next() {
		var (
			e           models.ChangeLogEntry
			opType      string
			fieldName   sql.NullString
			oldValue    []byte
			newValue    []byte
			deviceID    sql.NullString
			batchID     sql.NullString
			processedAt sql.NullInt64
			syncError   sql.NullString
		)
		if err := rows.Scan(
			&e.OperationID, &e.EntityTable, &e.EntityID, &opType, &fieldName,
			&oldValue, &newValue, &e.Timestamp, &e.UserID, &deviceID,
			&batchID, &processedAt, &syncError,
		); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan change log entry", err)
		}
		e.OperationType = models.OperationType(opType)
		e.FieldName = fieldName.String
		e.OldValue = oldValue
		e.NewValue = newValue
		e.DeviceID = models.UUID(deviceID.String)
		e.SyncBatchID = models.UUID(batchID.String)
		e.ProcessedAt = processedAt.Int64
		e.SyncError = syncError.String
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate change log entries", err)
	}
	return entries, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullUUID(u models.UUID) any {
	if u == "" {
		return nil
	}
	return string(u)
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
