package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	workshopRefs    = []string{"project_id"}
	workshopTracked = []string{"purpose", "event_date", "location", "budget"}
	workshopCols    = columns(workshopRefs, workshopTracked)
	workshopSelect  = selectStmt("workshops", workshopCols)
	workshopUpsert  = upsertStmt("workshops", workshopCols)
)

// WorkshopAdapter merges remote workshop state and serves workshop deletions.
type WorkshopAdapter struct {
	tableOps
}

// NewWorkshopAdapter creates the adapter for the workshops table.
func NewWorkshopAdapter() *WorkshopAdapter {
	return &WorkshopAdapter{tableOps{"workshops"}}
}

// DecodeState parses a change payload into a full workshop record.
func (a *WorkshopAdapter) DecodeState(payload []byte) (*models.Workshop, error) {
	var w models.Workshop
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid workshop payload", err)
	}
	if w.ID == "" || w.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "workshop payload missing id or updated_at")
	}
	return &w, nil
}

// FindByIDTx loads the local workshop, treating soft-deleted rows as absent.
func (a *WorkshopAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Workshop, bool, error) {
	var (
		w                                  models.Workshop
		projectID                          sql.NullString
		purpose, eventDate, location, budget provScan
		meta                               metaScan
	)
	dest := []any{&w.ID, &projectID}
	dest = append(dest, &w.Purpose)
	dest = append(dest, purpose.targets()...)
	dest = append(dest, &w.EventDate)
	dest = append(dest, eventDate.targets()...)
	dest = append(dest, &w.Location)
	dest = append(dest, location.targets()...)
	dest = append(dest, &w.Budget)
	dest = append(dest, budget.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, workshopSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load workshop", err)
	}
	w.ProjectID = models.UUID(projectID.String)
	w.PurposeProv = purpose.prov()
	w.EventDateProv = eventDate.prov()
	w.LocationProv = location.prov()
	w.BudgetProv = budget.prov()
	meta.apply(&w.SyncMeta)
	return &w, true, nil
}

// UpsertRemoteTx writes remote workshop state over the local row.
func (a *WorkshopAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, w *models.Workshop, origin models.UUID) error {
	args := []any{string(w.ID), nullStr(string(w.ProjectID))}
	args = append(args, w.Purpose)
	args = append(args, provArgs(w.PurposeProv, origin)...)
	args = append(args, w.EventDate)
	args = append(args, provArgs(w.EventDateProv, origin)...)
	args = append(args, w.Location)
	args = append(args, provArgs(w.LocationProv, origin)...)
	args = append(args, w.Budget)
	args = append(args, provArgs(w.BudgetProv, origin)...)
	args = append(args, metaArgs(&w.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, workshopUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert workshop", err)
	}
	return nil
}
