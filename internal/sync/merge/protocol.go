package merge

import (
	"context"
	"database/sql"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// Apply reconciles one remote change against the local row inside tx.
//
// Creates and updates both carry full record state and follow the same path:
// missing local row means insert, otherwise the newer record-level version
// wins and ties keep the local copy. Soft deletes never propagate. Hard
// deletes remove the row; deleting an already-absent row is a no-op.
//
// Apply never commits or rolls back tx; the caller owns the transaction.
func Apply[T Record](
	ctx context.Context,
	tx *sql.Tx,
	a Adapter[T],
	op models.OperationType,
	entityID models.UUID,
	payload []byte,
	origin models.UUID,
) (Outcome, error) {
	switch op {
	case models.OpCreate, models.OpUpdate:
		return applyState(ctx, tx, a, entityID, payload, origin)
	case models.OpDelete:
		// soft deletes are device-local and never replayed
		return noOp(entityID, "soft deletes do not propagate", 0, 0), nil
	case models.OpHardDelete:
		exists, err := a.ExistsTx(ctx, tx, string(entityID))
		if err != nil {
			return Outcome{}, err
		}
		if !exists {
			return noOp(entityID, "row already absent", 0, 0), nil
		}
		if err := a.HardDeleteTx(ctx, tx, string(entityID)); err != nil {
			return Outcome{}, err
		}
		return hardDeleted(entityID), nil
	default:
		return Outcome{}, apperrors.Newf(apperrors.ErrValidation, "unknown operation type %q", op)
	}
}

func applyState[T Record](
	ctx context.Context,
	tx *sql.Tx,
	a Adapter[T],
	entityID models.UUID,
	payload []byte,
	origin models.UUID,
) (Outcome, error) {
	if len(payload) == 0 {
		return Outcome{}, apperrors.Newf(apperrors.ErrValidation, "%s change for %s has no payload", a.Table(), entityID)
	}
	remote, err := a.DecodeState(payload)
	if err != nil {
		return Outcome{}, err
	}
	if remote.RecordID() != string(entityID) {
		return Outcome{}, apperrors.Newf(apperrors.ErrValidation,
			"payload id %s does not match change entity id %s", remote.RecordID(), entityID)
	}

	local, found, err := a.FindByIDTx(ctx, tx, string(entityID))
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		if err := a.UpsertRemoteTx(ctx, tx, remote, origin); err != nil {
			return Outcome{}, err
		}
		return created(entityID), nil
	}

	localVersion := local.RecordVersion()
	remoteVersion := remote.RecordVersion()
	if remoteVersion <= localVersion {
		// ties keep the local copy
		return noOp(entityID, "local copy is as new or newer", localVersion, remoteVersion), nil
	}
	if err := a.UpsertRemoteTx(ctx, tx, remote, origin); err != nil {
		return Outcome{}, err
	}
	return updated(entityID, localVersion, remoteVersion), nil
}
