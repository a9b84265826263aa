package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	donorTracked = []string{"name", "donor_type", "contact_person", "email", "phone", "country"}
	donorCols    = columns(nil, donorTracked)
	donorSelect  = selectStmt("donors", donorCols)
	donorUpsert  = upsertStmt("donors", donorCols)
)

// DonorAdapter merges remote donor state and serves donor deletions.
type DonorAdapter struct {
	tableOps
}

// NewDonorAdapter creates the adapter for the donors table.
func NewDonorAdapter() *DonorAdapter {
	return &DonorAdapter{tableOps{"donors"}}
}

// DecodeState parses a change payload into a full donor record.
func (a *DonorAdapter) DecodeState(payload []byte) (*models.Donor, error) {
	var d models.Donor
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid donor payload", err)
	}
	if d.ID == "" || d.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "donor payload missing id or updated_at")
	}
	return &d, nil
}

// FindByIDTx loads the local donor, treating soft-deleted rows as absent.
func (a *DonorAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Donor, bool, error) {
	var (
		d                                               models.Donor
		name, donorType, contact, email, phone, country provScan
		meta                                            metaScan
	)
	dest := []any{&d.ID}
	dest = append(dest, &d.Name)
	dest = append(dest, name.targets()...)
	dest = append(dest, &d.DonorType)
	dest = append(dest, donorType.targets()...)
	dest = append(dest, &d.ContactPerson)
	dest = append(dest, contact.targets()...)
	dest = append(dest, &d.Email)
	dest = append(dest, email.targets()...)
	dest = append(dest, &d.Phone)
	dest = append(dest, phone.targets()...)
	dest = append(dest, &d.Country)
	dest = append(dest, country.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, donorSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load donor", err)
	}
	d.NameProv = name.prov()
	d.DonorTypeProv = donorType.prov()
	d.ContactPersonProv = contact.prov()
	d.EmailProv = email.prov()
	d.PhoneProv = phone.prov()
	d.CountryProv = country.prov()
	meta.apply(&d.SyncMeta)
	return &d, true, nil
}

// UpsertRemoteTx writes remote donor state over the local row.
func (a *DonorAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, d *models.Donor, origin models.UUID) error {
	args := []any{string(d.ID)}
	args = append(args, d.Name)
	args = append(args, provArgs(d.NameProv, origin)...)
	args = append(args, d.DonorType)
	args = append(args, provArgs(d.DonorTypeProv, origin)...)
	args = append(args, d.ContactPerson)
	args = append(args, provArgs(d.ContactPersonProv, origin)...)
	args = append(args, d.Email)
	args = append(args, provArgs(d.EmailProv, origin)...)
	args = append(args, d.Phone)
	args = append(args, provArgs(d.PhoneProv, origin)...)
	args = append(args, d.Country)
	args = append(args, provArgs(d.CountryProv, origin)...)
	args = append(args, metaArgs(&d.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, donorUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert donor", err)
	}
	return nil
}
