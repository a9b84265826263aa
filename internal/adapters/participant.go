package adapters

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

var (
	participantTracked = []string{"name", "gender", "age_group", "location", "disability"}
	participantCols    = columns(nil, participantTracked)
	participantSelect  = selectStmt("participants", participantCols)
	participantUpsert  = upsertStmt("participants", participantCols)
)

// ParticipantAdapter merges remote participant state and serves participant
// deletions.
type ParticipantAdapter struct {
	tableOps
}

// NewParticipantAdapter creates the adapter for the participants table.
func NewParticipantAdapter() *ParticipantAdapter {
	return &ParticipantAdapter{tableOps{"participants"}}
}

// DecodeState parses a change payload into a full participant record.
func (a *ParticipantAdapter) DecodeState(payload []byte) (*models.Participant, error) {
	var p models.Participant
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid participant payload", err)
	}
	if p.ID == "" || p.UpdatedAt == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "participant payload missing id or updated_at")
	}
	return &p, nil
}

// FindByIDTx loads the local participant, treating soft-deleted rows as
// absent.
func (a *ParticipantAdapter) FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Participant, bool, error) {
	var (
		p                                          models.Participant
		name, gender, ageGroup, location, disProv  provScan
		meta                                       metaScan
	)
	dest := []any{&p.ID}
	dest = append(dest, &p.Name)
	dest = append(dest, name.targets()...)
	dest = append(dest, &p.Gender)
	dest = append(dest, gender.targets()...)
	dest = append(dest, &p.AgeGroup)
	dest = append(dest, ageGroup.targets()...)
	dest = append(dest, &p.Location)
	dest = append(dest, location.targets()...)
	dest = append(dest, &p.Disability)
	dest = append(dest, disProv.targets()...)
	dest = append(dest, meta.targets()...)

	err := tx.QueryRowContext(ctx, participantSelect, id).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStorage, "failed to load participant", err)
	}
	p.NameProv = name.prov()
	p.GenderProv = gender.prov()
	p.AgeGroupProv = ageGroup.prov()
	p.LocationProv = location.prov()
	p.DisabilityProv = disProv.prov()
	meta.apply(&p.SyncMeta)
	return &p, true, nil
}

// UpsertRemoteTx writes remote participant state over the local row.
func (a *ParticipantAdapter) UpsertRemoteTx(ctx context.Context, tx *sql.Tx, p *models.Participant, origin models.UUID) error {
	args := []any{string(p.ID)}
	args = append(args, p.Name)
	args = append(args, provArgs(p.NameProv, origin)...)
	args = append(args, p.Gender)
	args = append(args, provArgs(p.GenderProv, origin)...)
	args = append(args, p.AgeGroup)
	args = append(args, provArgs(p.AgeGroupProv, origin)...)
	args = append(args, p.Location)
	args = append(args, provArgs(p.LocationProv, origin)...)
	args = append(args, p.Disability)
	args = append(args, provArgs(p.DisabilityProv, origin)...)
	args = append(args, metaArgs(&p.SyncMeta, origin)...)

	if _, err := tx.ExecContext(ctx, participantUpsert, args...); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert participant", err)
	}
	return nil
}
