// Package adapters binds each entity to the merge protocol and the delete
// service. Column lists are declared per entity; SELECT and upsert SQL is
// generated from them so the statements cannot drift apart.
package adapters

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// provCols expands one tracked field into its value column plus the three
// provenance shadow columns.
func provCols(field string) []string {
	return []string{
		field,
		field + "_updated_at",
		field + "_updated_by",
		field + "_updated_by_device_id",
	}
}

// columns assembles the full column list for an entity table: id, plain
// reference columns, tracked fields with shadows, then the sync meta footer.
func columns(plain, tracked []string) []string {
	cols := []string{"id"}
	cols = append(cols, plain...)
	for _, f := range tracked {
		cols = append(cols, provCols(f)...)
	}
	return append(cols,
		"created_at", "updated_at",
		"created_by", "created_by_device_id",
		"updated_by", "updated_by_device_id",
		"deleted_at", "deleted_by", "deleted_by_device_id",
	)
}

// selectStmt builds the by-id SELECT. Soft-deleted rows are treated as
// absent so remote state can land over them.
func selectStmt(table string, cols []string) string {
	return "SELECT " + strings.Join(cols, ", ") +
		" FROM " + table + " WHERE id = ? AND deleted_at IS NULL"
}

// upsertStmt builds the INSERT OR REPLACE used to write remote state.
func upsertStmt(table string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return "INSERT OR REPLACE INTO " + table +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"
}

// provScan receives the three nullable shadow columns of a tracked field.
type provScan struct {
	at  sql.NullInt64
	by  sql.NullString
	dev sql.NullString
}

func (p *provScan) targets() []any {
	return []any{&p.at, &p.by, &p.dev}
}

func (p *provScan) prov() models.Provenance {
	return models.Provenance{
		UpdatedAt: p.at.Int64,
		UpdatedBy: models.UUID(p.by.String),
		DeviceID:  models.UUID(p.dev.String),
	}
}

// provArgs renders a Provenance for insertion. A provenance that names a
// user but no device is stamped with the sending device, so records written
// before device attribution existed stay queryable by device.
func provArgs(p models.Provenance, origin models.UUID) []any {
	dev := p.DeviceID
	if dev == "" && p.UpdatedBy != "" {
		dev = origin
	}
	return []any{nullInt(p.UpdatedAt), nullStr(string(p.UpdatedBy)), nullStr(string(dev))}
}

// metaScan receives the sync meta footer columns.
type metaScan struct {
	createdAt  int64
	updatedAt  int64
	createdBy  sql.NullString
	createdDev sql.NullString
	updatedBy  sql.NullString
	updatedDev sql.NullString
	deletedAt  sql.NullInt64
	deletedBy  sql.NullString
	deletedDev sql.NullString
}

func (m *metaScan) targets() []any {
	return []any{
		&m.createdAt, &m.updatedAt,
		&m.createdBy, &m.createdDev,
		&m.updatedBy, &m.updatedDev,
		&m.deletedAt, &m.deletedBy, &m.deletedDev,
	}
}

func (m *metaScan) apply(meta *models.SyncMeta) {
	meta.CreatedAt = m.createdAt
	meta.UpdatedAt = m.updatedAt
	meta.CreatedBy = models.UUID(m.createdBy.String)
	meta.CreatedByDeviceID = models.UUID(m.createdDev.String)
	meta.UpdatedBy = models.UUID(m.updatedBy.String)
	meta.UpdatedByDeviceID = models.UUID(m.updatedDev.String)
	meta.DeletedAt = m.deletedAt.Int64
	meta.DeletedBy = models.UUID(m.deletedBy.String)
	meta.DeletedByDeviceID = models.UUID(m.deletedDev.String)
}

// metaArgs renders the sync meta footer for insertion. Missing attribution
// device ids are backfilled with the sending device.
func metaArgs(m *models.SyncMeta, origin models.UUID) []any {
	createdDev := m.CreatedByDeviceID
	if createdDev == "" && m.CreatedBy != "" {
		createdDev = origin
	}
	updatedDev := m.UpdatedByDeviceID
	if updatedDev == "" {
		updatedDev = origin
	}
	return []any{
		m.CreatedAt, m.UpdatedAt,
		nullStr(string(m.CreatedBy)), nullStr(string(createdDev)),
		nullStr(string(m.UpdatedBy)), nullStr(string(updatedDev)),
		nullInt(m.DeletedAt), nullStr(string(m.DeletedBy)), nullStr(string(m.DeletedByDeviceID)),
	}
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// tableOps provides the table-name-only operations every adapter shares.
type tableOps struct {
	table string
}

// Table returns the entity table name.
func (t tableOps) Table() string {
	return t.table
}

// ExistsTx reports whether a row with id exists, soft-deleted or not. Hard
// deletes must be able to remove soft-deleted rows.
func (t tableOps) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+t.table+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStorage, "failed to check row existence", err)
	}
	return n > 0, nil
}

// SoftDeleteTx flags the row as deleted locally. Already-deleted or missing
// rows report not found.
func (t tableOps) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id string, actor models.Actor) error {
	now := models.NowMillis()
	res, err := tx.ExecContext(ctx, `
		UPDATE `+t.table+` SET
			deleted_at = ?, deleted_by = ?, deleted_by_device_id = ?,
			updated_at = ?, updated_by = ?, updated_by_device_id = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, nullStr(string(actor.UserID)), nullStr(string(actor.DeviceID)),
		now, nullStr(string(actor.UserID)), nullStr(string(actor.DeviceID)),
		id,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to soft delete row", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "%s %s not found", t.table, id)
	}
	return nil
}

// HardDeleteTx removes the row. An absent row is not an error; replaying a
// deletion twice must succeed.
func (t tableOps) HardDeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+t.table+" WHERE id = ?", id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to hard delete row", err)
	}
	return nil
}
