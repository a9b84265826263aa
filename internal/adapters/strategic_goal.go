package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	goalTracked = []string{"objective_code", "outcome", "kpi", "target_value", "actual_value", "responsible_team"}
	goalCols    = columns(nil, goalTracked)
	goalSelect  = selectStmt("strategic_goals", goalCols)
	goalUpsert  = upsertStmt("strategic_goals", goalCols)
)

// StrategicGoalAdapter merges remote strategic goal state and serves
// strategic goal deletions.
type StrategicGoalAdapter struct {
	tableOps
}

// NewStrategicGoalAdapter creates the adapter for the strategic_goals table.
func NewStrategicGoalAdapter() *StrategicGoalAdapter {
	return &StrategicGoalAdapter{tableOps{"strategic_goals"}}
}

// DecodeState parses a change payload into a full strategic goal record.
func (a *StrategicGoalAdapter) DecodeState(payload []byte) (*models.StrategicGoal, error) {
	var g models.StrategicGoal
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid strategic goal payload", err)
	}
	if g.ID == "" || g.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "strategic goal payload missing id or updated_at")
	}
	return &g, nil
}

// FindByIDTx loads the local goal, treating soft-deleted rows as absent.
func (a *StrategicGoalAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.StrategicGoal, bool, error) {
	var (
		g                                       models.StrategicGoal
		code, outcome, kpi, target, actual, rt  provScan
		meta                                    metaScan
	)
	dest := []any{&g.ID}
	dest = append(dest, &g.ObjectiveCode)
	dest = append(dest, code.targets()...)
	dest = append(dest, &g.Outcome)
	dest = append(dest, outcome.targets()...)
	dest = append(dest, &g.KPI)
	dest = append(dest, kpi.targets()...)
	dest = append(dest, &g.TargetValue)
	dest = append(dest, target.targets()...)
	dest = append(dest, &g.ActualValue)
	dest = append(dest, actual.targets()...)
	dest = append(dest, &g.ResponsibleTeam)
	dest = append(dest, rt.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, goalSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load strategic goal", err)
	}
	g.ObjectiveCodeProv = code.prov()
	g.OutcomeProv = outcome.prov()
	g.KPIProv = kpi.prov()
	g.TargetValueProv = target.prov()
	g.ActualValueProv = actual.prov()
	g.ResponsibleTeamProv = rt.prov()
	meta.apply(&g.SyncMeta)
	return &g, true, nil
}

// UpsertRemoteTx writes remote strategic goal state over the local row.
func (a *StrategicGoalAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, g *models.StrategicGoal, origin models.UUID) error {
	args := []any{string(g.ID)}
	args = append(args, g.ObjectiveCode)
	args = append(args, provArgs(g.ObjectiveCodeProv, origin)...)
	args = append(args, g.Outcome)
	args = append(args, provArgs(g.OutcomeProv, origin)...)
	args = append(args, g.KPI)
	args = append(args, provArgs(g.KPIProv, origin)...)
	args = append(args, g.TargetValue)
	args = append(args, provArgs(g.TargetValueProv, origin)...)
	args = append(args, g.ActualValue)
	args = append(args, provArgs(g.ActualValueProv, origin)...)
	args = append(args, g.ResponsibleTeam)
	args = append(args, provArgs(g.ResponsibleTeamProv, origin)...)
	args = append(args, metaArgs(&g.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, goalUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert strategic goal", err)
	}
	return nil
}
