package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	projectRefs    = []string{"strategic_goal_id"}
	projectTracked = []string{"name", "objective", "outcome", "timeline", "responsible_team"}
	projectCols    = columns(projectRefs, projectTracked)
	projectSelect  = selectStmt("projects", projectCols)
	projectUpsert  = upsertStmt("projects", projectCols)
)

// ProjectAdapter merges remote project state and serves project deletions.
type ProjectAdapter struct {
	tableOps
}

// NewProjectAdapter creates the adapter for the projects table.
func NewProjectAdapter() *ProjectAdapter {
	return &ProjectAdapter{tableOps{"projects"}}
}

// DecodeState parses a change payload into a full project record.
func (a *ProjectAdapter) DecodeState(payload []byte) (*models.Project, error) {
	var p models.Project
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid project payload", err)
	}
	if p.ID == "" || p.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "project payload missing id or updated_at")
	}
	return &p, nil
}

// FindByIDTx loads the local project, treating soft-deleted rows as absent.
func (a *ProjectAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Project, bool, error) {
	var (
		p                                      models.Project
		goalID                                 sql.NullString
		name, objective, outcome, timeline, rt provScan
		meta                                   metaScan
	)
	dest := []any{&p.ID, &goalID}
	dest = append(dest, &p.Name)
	dest = append(dest, name.targets()...)
	dest = append(dest, &p.Objective)
	dest = append(dest, objective.targets()...)
	dest = append(dest, &p.Outcome)
	dest = append(dest, outcome.targets()...)
	dest = append(dest, &p.Timeline)
	dest = append(dest, timeline.targets()...)
	dest = append(dest, &p.ResponsibleTeam)
	dest = append(dest, rt.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, projectSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load project", err)
	}
	p.StrategicGoalID = models.UUID(goalID.String)
	p.NameProv = name.prov()
	p.ObjectiveProv = objective.prov()
	p.OutcomeProv = outcome.prov()
	p.TimelineProv = timeline.prov()
	p.ResponsibleTeamProv = rt.prov()
	meta.apply(&p.SyncMeta)
	return &p, true, nil
}

// UpsertRemoteTx writes remote project state over the local row.
func (a *ProjectAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, p *models.Project, origin models.UUID) error {
	args := []any{string(p.ID), nullStr(string(p.StrategicGoalID))}
	args = append(args, p.Name)
	args = append(args, provArgs(p.NameProv, origin)...)
	args = append(args, p.Objective)
	args = append(args, provArgs(p.ObjectiveProv, origin)...)
	args = append(args, p.Outcome)
	args = append(args, provArgs(p.OutcomeProv, origin)...)
	args = append(args, p.Timeline)
	args = append(args, provArgs(p.TimelineProv, origin)...)
	args = append(args, p.ResponsibleTeam)
	args = append(args, provArgs(p.ResponsibleTeamProv, origin)...)
	args = append(args, metaArgs(&p.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, projectUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert project", err)
	}
	return nil
}
