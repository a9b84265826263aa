package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	activityRefs    = []string{"project_id"}
	activityTracked = []string{"description", "kpi", "target_value", "actual_value"}
	activityCols    = columns(activityRefs, activityTracked)
	activitySelect  = selectStmt("activities", activityCols)
	activityUpsert  = upsertStmt("activities", activityCols)
)

// ActivityAdapter merges remote activity state and serves activity deletions.
type ActivityAdapter struct {
	tableOps
}

// NewActivityAdapter creates the adapter for the activities table.
func NewActivityAdapter() *ActivityAdapter {
	return &ActivityAdapter{tableOps{"activities"}}
}

// DecodeState parses a change payload into a full activity record.
func (a *ActivityAdapter) DecodeState(payload []byte) (*models.Activity, error) {
	var act models.Activity
	if err := json.Unmarshal(payload, &act); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid activity payload", err)
	}
	if act.ID == "" || act.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "activity payload missing id or updated_at")
	}
	return &act, nil
}

// FindByIDTx loads the local activity, treating soft-deleted rows as absent.
func (a *ActivityAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Activity, bool, error) {
	var (
		act                              models.Activity
		projectID                        sql.NullString
		description, kpi, target, actual provScan
		meta                             metaScan
	)
	dest := []any{&act.ID, &projectID}
	dest = append(dest, &act.Description)
	dest = append(dest, description.targets()...)
	dest = append(dest, &act.KPI)
	dest = append(dest, kpi.targets()...)
	dest = append(dest, &act.TargetValue)
	dest = append(dest, target.targets()...)
	dest = append(dest, &act.ActualValue)
	dest = append(dest, actual.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, activitySelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load activity", err)
	}
	act.ProjectID = models.UUID(projectID.String)
	act.DescriptionProv = description.prov()
	act.KPIProv = kpi.prov()
	act.TargetValueProv = target.prov()
	act.ActualValueProv = actual.prov()
	meta.apply(&act.SyncMeta)
	return &act, true, nil
}

// UpsertRemoteTx writes remote activity state over the local row.
func (a *ActivityAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, act *models.Activity, origin models.UUID) error {
	args := []any{string(act.ID), nullStr(string(act.ProjectID))}
	args = append(args, act.Description)
	args = append(args, provArgs(act.DescriptionProv, origin)...)
	args = append(args, act.KPI)
	args = append(args, provArgs(act.KPIProv, origin)...)
	args = append(args, act.TargetValue)
	args = append(args, provArgs(act.TargetValueProv, origin)...)
	args = append(args, act.ActualValue)
	args = append(args, provArgs(act.ActualValueProv, origin)...)
	args = append(args, metaArgs(&act.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, activityUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert activity", err)
	}
	return nil
}
