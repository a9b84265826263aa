// Package merger routes incoming changes and tombstones to the entity they
// belong to and applies them through the merge protocol.
package merger

import (
	"context"
	"database/sql"

	"github.com/andenet/fieldsync/internal/deletion"
	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/logging"
	"github.com/andenet/fieldsync/internal/models"
	"github.com/andenet/fieldsync/internal/sync/changelog"
	"github.com/andenet/fieldsync/internal/sync/merge"
)

// EntityMerger applies remote changes to one entity table.
type EntityMerger interface {
	// EntityTable returns the table this merger serves.
	EntityTable() string
	// ApplyChange applies one change in its own transaction. Changes the
	// local actor produced itself are skipped.
	ApplyChange(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error
	// ApplyCreate, ApplyUpdate and ApplySoftDelete are typed variants of
	// ApplyChange that reject entries carrying a different operation.
	ApplyCreate(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error
	ApplyUpdate(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error
	ApplySoftDelete(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error
	// ApplyChangeTx applies one change inside the caller's transaction.
	ApplyChangeTx(ctx context.Context, tx *sql.Tx, change *models.ChangeLogEntry, actor models.Actor) error
	// ApplyHardDelete replays a tombstone through the delete service:
	// persist it locally, cascade dependents, remove the row. Idempotent.
	ApplyHardDelete(ctx context.Context, ts *models.Tombstone, actor models.Actor) error
}

// IsLocalChange reports whether the change was produced by the current actor
// and must not be re-applied. Entries recorded before device attribution
// existed carry no device id and are treated as remote.
func IsLocalChange(change *models.ChangeLogEntry, actor models.Actor) bool {
	if change.DeviceID == "" {
		return false
	}
	return change.DeviceID == actor.DeviceID && change.UserID == actor.UserID
}

// entityMerger is the generic implementation of EntityMerger; one instance
// per entity table, all sharing the merge protocol.
type entityMerger[T merge.Record] struct {
	db        *sql.DB
	adapter   merge.Adapter[T]
	deletes   *deletion.Service
	conflicts *changelog.ConflictStore
}

// New builds an EntityMerger on top of an entity adapter. deletes must be
// the delete service for the same table; hard deletes replay through it so
// dependents this device knows about fall with their parent.
func New[T merge.Record](
	db *sql.DB,
	adapter merge.Adapter[T],
	deletes *deletion.Service,
	conflicts *changelog.ConflictStore,
) EntityMerger {
	return &entityMerger[T]{db: db, adapter: adapter, deletes: deletes, conflicts: conflicts}
}

func (m *entityMerger[T]) EntityTable() string {
	return m.adapter.Table()
}

func (m *entityMerger[T]) ApplyChange(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error {
	if IsLocalChange(change, actor) {
		logging.Debug("skipping local echo", logging.Fields{
			"table": change.EntityTable, "operation_id": change.OperationID,
		})
		return nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	outcome, err := m.applyTx(ctx, tx, change, actor)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to commit merge", err)
	}
	logging.Info("merged remote change", logging.Fields{
		"table": change.EntityTable, "entity_id": change.EntityID,
		"operation": string(change.OperationType), "outcome": string(outcome.Kind),
	})
	return nil
}

func (m *entityMerger[T]) ApplyCreate(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error {
	return m.applyTyped(ctx, change, actor, models.OpCreate)
}

func (m *entityMerger[T]) ApplyUpdate(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error {
	return m.applyTyped(ctx, change, actor, models.OpUpdate)
}

func (m *entityMerger[T]) ApplySoftDelete(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error {
	return m.applyTyped(ctx, change, actor, models.OpDelete)
}

func (m *entityMerger[T]) applyTyped(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor, want models.OperationType) error {
	if change.OperationType != want {
		return apperrors.Newf(apperrors.ErrValidation,
			"expected %s change for %s, got %s", want, change.EntityTable, change.OperationType)
	}
	return m.ApplyChange(ctx, change, actor)
}

func (m *entityMerger[T]) ApplyChangeTx(ctx context.Context, tx *sql.Tx, change *models.ChangeLogEntry, actor models.Actor) error {
	if IsLocalChange(change, actor) {
		return nil
	}
	_, err := m.applyTx(ctx, tx, change, actor)
	return err
}

func (m *entityMerger[T]) applyTx(ctx context.Context, tx *sql.Tx, change *models.ChangeLogEntry, actor models.Actor) (merge.Outcome, error) {
	if change.EntityTable != m.adapter.Table() {
		return merge.Outcome{}, apperrors.Newf(apperrors.ErrSyncRouting,
			"change for table %q routed to %q merger", change.EntityTable, m.adapter.Table())
	}
	if err := change.Validate(); err != nil {
		return merge.Outcome{}, err
	}

	// a hard delete arriving through the change stream replays through the
	// delete service: the tombstone is persisted so the deletion survives
	// later replays, and dependents only this device knows about fall with
	// their parent
	if change.OperationType == models.OpHardDelete {
		return m.replayTx(ctx, tx, tombstoneFromChange(change), actor)
	}

	outcome, err := merge.Apply(ctx, tx, m.adapter, change.OperationType, change.EntityID, change.NewValue, change.DeviceID)
	if err != nil {
		return merge.Outcome{}, err
	}
	if outcome.LostLWW() {
		conflict := models.NewConflictLog(change.EntityTable, change.EntityID,
			outcome.LocalVersion, outcome.RemoteVersion, change.UserID, change.DeviceID)
		if err := m.conflicts.RecordTx(ctx, tx, conflict); err != nil {
			return merge.Outcome{}, err
		}
	}
	return outcome, nil
}

func (m *entityMerger[T]) ApplyHardDelete(ctx context.Context, ts *models.Tombstone, actor models.Actor) error {
	if ts.EntityType != m.adapter.Table() {
		return apperrors.Newf(apperrors.ErrSyncRouting,
			"tombstone for table %q routed to %q merger", ts.EntityType, m.adapter.Table())
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	outcome, err := m.replayTx(ctx, tx, ts, actor)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to commit tombstone replay", err)
	}
	logging.Info("replayed tombstone", logging.Fields{
		"table": ts.EntityType, "entity_id": ts.EntityID, "outcome": string(outcome.Kind),
	})
	return nil
}

// replayTx routes a received hard delete through the delete service inside
// the caller's transaction and translates the result into a merge outcome.
func (m *entityMerger[T]) replayTx(ctx context.Context, tx *sql.Tx, ts *models.Tombstone, actor models.Actor) (merge.Outcome, error) {
	res, err := m.deletes.ReplayHardDeleteTx(ctx, tx, ts, actor)
	if err != nil {
		return merge.Outcome{}, err
	}
	if res.Kind == deletion.NotFound {
		return merge.Outcome{Kind: merge.KindNoOp, EntityID: ts.EntityID, Reason: "row already absent"}, nil
	}
	return merge.Outcome{Kind: merge.KindHardDeleted, EntityID: ts.EntityID}, nil
}

func tombstoneFromChange(change *models.ChangeLogEntry) *models.Tombstone {
	return &models.Tombstone{
		ID:                change.OperationID,
		EntityID:          change.EntityID,
		EntityType:        change.EntityTable,
		DeletedBy:         change.UserID,
		DeletedByDeviceID: change.DeviceID,
		DeletedAt:         change.Timestamp,
		OperationID:       change.OperationID,
	}
}
