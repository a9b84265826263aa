package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	livelihoodRefs    = []string{"participant_id", "project_id"}
	livelihoodTracked = []string{"grant_amount", "purpose", "outcome"}
	livelihoodCols    = columns(livelihoodRefs, livelihoodTracked)
	livelihoodSelect  = selectStmt("livelihoods", livelihoodCols)
	livelihoodUpsert  = upsertStmt("livelihoods", livelihoodCols)
)

// LivelihoodAdapter merges remote livelihood state and serves livelihood
// deletions.
type LivelihoodAdapter struct {
	tableOps
}

// NewLivelihoodAdapter creates the adapter for the livelihoods table.
func NewLivelihoodAdapter() *LivelihoodAdapter {
	return &LivelihoodAdapter{tableOps{"livelihoods"}}
}

// DecodeState parses a change payload into a full livelihood record.
func (a *LivelihoodAdapter) DecodeState(payload []byte) (*models.Livelihood, error) {
	var l models.Livelihood
	if err := json.Unmarshal(payload, &l); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid livelihood payload", err)
	}
	if l.ID == "" || l.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "livelihood payload missing id or updated_at")
	}
	return &l, nil
}

// FindByIDTx loads the local livelihood, treating soft-deleted rows as
// absent.
func (a *LivelihoodAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Livelihood, bool, error) {
	var (
		l                             models.Livelihood
		participantID, projectID      sql.NullString
		grantAmount, purpose, outcome provScan
		meta                          metaScan
	)
	dest := []any{&l.ID, &participantID, &projectID}
	dest = append(dest, &l.GrantAmount)
	dest = append(dest, grantAmount.targets()...)
	dest = append(dest, &l.Purpose)
	dest = append(dest, purpose.targets()...)
	dest = append(dest, &l.Outcome)
	dest = append(dest, outcome.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, livelihoodSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load livelihood", err)
	}
	l.ParticipantID = models.UUID(participantID.String)
	l.ProjectID = models.UUID(projectID.String)
	l.GrantAmountProv = grantAmount.prov()
	l.PurposeProv = purpose.prov()
	l.OutcomeProv = outcome.prov()
	meta.apply(&l.SyncMeta)
	return &l, true, nil
}

// UpsertRemoteTx writes remote livelihood state over the local row.
func (a *LivelihoodAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, l *models.Livelihood, origin models.UUID) error {
	args := []any{string(l.ID), nullStr(string(l.ParticipantID)), nullStr(string(l.ProjectID))}
	args = append(args, l.GrantAmount)
	args = append(args, provArgs(l.GrantAmountProv, origin)...)
	args = append(args, l.Purpose)
	args = append(args, provArgs(l.PurposeProv, origin)...)
	args = append(args, l.Outcome)
	args = append(args, provArgs(l.OutcomeProv, origin)...)
	args = append(args, metaArgs(&l.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, livelihoodUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert livelihood", err)
	}
	return nil
}
