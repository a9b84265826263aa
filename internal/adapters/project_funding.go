package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	fundingRefs    = []string{"project_id", "donor_id"}
	fundingTracked = []string{"grant_id", "amount", "currency"}
	fundingCols    = columns(fundingRefs, fundingTracked)
	fundingSelect  = selectStmt("project_funding", fundingCols)
	fundingUpsert  = upsertStmt("project_funding", fundingCols)
)

// ProjectFundingAdapter merges remote funding state and serves funding
// deletions.
type ProjectFundingAdapter struct {
	tableOps
}

// NewProjectFundingAdapter creates the adapter for the project_funding table.
func NewProjectFundingAdapter() *ProjectFundingAdapter {
	return &ProjectFundingAdapter{tableOps{"project_funding"}}
}

// DecodeState parses a change payload into a full funding record.
func (a *ProjectFundingAdapter) DecodeState(payload []byte) (*models.ProjectFunding, error) {
	var f models.ProjectFunding
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid project funding payload", err)
	}
	if f.ID == "" || f.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "project funding payload missing id or updated_at")
	}
	return &f, nil
}

// FindByIDTx loads the local funding row, treating soft-deleted rows as
// absent.
func (a *ProjectFundingAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.ProjectFunding, bool, error) {
	var (
		f                         models.ProjectFunding
		projectID, donorID        sql.NullString
		grantID, amount, currency provScan
		meta                      metaScan
	)
	dest := []any{&f.ID, &projectID, &donorID}
	dest = append(dest, &f.GrantID)
	dest = append(dest, grantID.targets()...)
	dest = append(dest, &f.Amount)
	dest = append(dest, amount.targets()...)
	dest = append(dest, &f.Currency)
	dest = append(dest, currency.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, fundingSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load project funding", err)
	}
	f.ProjectID = models.UUID(projectID.String)
	f.DonorID = models.UUID(donorID.String)
	f.GrantIDProv = grantID.prov()
	f.AmountProv = amount.prov()
	f.CurrencyProv = currency.prov()
	meta.apply(&f.SyncMeta)
	return &f, true, nil
}

// UpsertRemoteTx writes remote funding state over the local row.
func (a *ProjectFundingAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, f *models.ProjectFunding, origin models.UUID) error {
	args := []any{string(f.ID), nullStr(string(f.ProjectID)), nullStr(string(f.DonorID))}
	args = append(args, f.GrantID)
	args = append(args, provArgs(f.GrantIDProv, origin)...)
	args = append(args, f.Amount)
	args = append(args, provArgs(f.AmountProv, origin)...)
	args = append(args, f.Currency)
	args = append(args, provArgs(f.CurrencyProv, origin)...)
	args = append(args, metaArgs(&f.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, fundingUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert project funding", err)
	}
	return nil
}
