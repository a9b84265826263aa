package deletion

import (
	"context"
	"database/sql"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/logging"
	"github.com/andenet/fieldsync/internal/models"
	"github.com/andenet/fieldsync/internal/sync/changelog"
	"github.com/andenet/fieldsync/internal/uuid"
)

// Target is what the service needs from an entity's storage layer.
type Target interface {
	Table() string
	ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error)
	SoftDeleteTx(ctx context.Context, tx *sql.Tx, id string, actor models.Actor) error
	HardDeleteTx(ctx context.Context, tx *sql.Tx, id string) error
}

// Options steer one delete request.
type Options struct {
	// AllowHardDelete permits permanent removal; otherwise the delete is
	// always soft.
	AllowHardDelete bool
	// FallbackToSoftDelete downgrades to a soft delete when blocking
	// dependents exist instead of failing.
	FallbackToSoftDelete bool
	// Force skips the dependency check and treats a missing row as already
	// deleted.
	Force bool
}

// ResultKind says what the service actually did.
type ResultKind string

const (
	// HardDeleted: row removed, tombstone and change log entry written.
	HardDeleted ResultKind = "hard_deleted"
	// SoftDeleted: row flagged locally, nothing propagates the removal.
	SoftDeleted ResultKind = "soft_deleted"
	// NotFound: the row was already gone and Force made that a success.
	NotFound ResultKind = "not_found"
	// DependenciesPrevented: blocking dependents and no fallback allowed.
	DependenciesPrevented ResultKind = "dependencies_prevented"
)

// Result reports the outcome of a delete request.
type Result struct {
	Kind ResultKind
	// Dependencies lists the blocking dependent tables when relevant.
	Dependencies []string
}

// cascade removes rows of a dependent table together with their parent.
type cascade struct {
	column string
	target Target
}

// Service deletes rows of one entity table. A hard delete writes the
// tombstone, the hard_delete change log entry, and the row removal in a
// single transaction, so either the deletion propagates or nothing happened.
type Service struct {
	db         *sql.DB
	target     Target
	tombstones *changelog.TombstoneStore
	ledger     *changelog.Store
	checker    *DependencyChecker
	cascades   []cascade
}

// NewService creates a delete service for target's table.
func NewService(db *sql.DB, target Target, tombstones *changelog.TombstoneStore, ledger *changelog.Store, checker *DependencyChecker) *Service {
	return &Service{
		db:         db,
		target:     target,
		tombstones: tombstones,
		ledger:     ledger,
		checker:    checker,
	}
}

// WithCascade registers a dependent target whose rows are hard-deleted
// together with the parent. column is the dependent's reference column.
func (s *Service) WithCascade(column string, target Target) *Service {
	s.cascades = append(s.cascades, cascade{column: column, target: target})
	return s
}

// Delete removes the entity with id according to opts.
func (s *Service) Delete(ctx context.Context, id models.UUID, actor models.Actor, opts Options) (Result, error) {
	if id == "" {
		return Result{}, apperrors.New(apperrors.ErrValidation, "delete requires an entity id")
	}

	var blocking []string
	if !opts.Force {
		deps, err := s.checker.Check(ctx, s.target.Table(), id)
		if err != nil {
			return Result{}, err
		}
		blocking = Blocking(deps)
	}

	if opts.AllowHardDelete && len(blocking) == 0 {
		return s.hardDelete(ctx, id, actor, opts)
	}
	if len(blocking) > 0 && !opts.FallbackToSoftDelete {
		return Result{Kind: DependenciesPrevented, Dependencies: blocking}, nil
	}
	return s.softDelete(ctx, id, actor, blocking)
}

func (s *Service) hardDelete(ctx context.Context, id models.UUID, actor models.Actor, opts Options) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	exists, err := s.target.ExistsTx(ctx, tx, string(id))
	if err != nil {
		return Result{}, err
	}
	if !exists {
		if opts.Force {
			// already gone on this device; replaying the deletion is a no-op
			return Result{Kind: NotFound}, nil
		}
		return Result{}, apperrors.Newf(apperrors.ErrNotFound, "%s %s not found", s.target.Table(), id)
	}

	for _, c := range s.cascades {
		if err := s.cascadeDelete(ctx, tx, c, id, actor); err != nil {
			return Result{}, err
		}
	}
	if err := s.hardDeleteRowTx(ctx, tx, s.target, id, actor); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrStorage, "failed to commit hard delete", err)
	}
	logging.Info("hard deleted entity", logging.Fields{"table": s.target.Table(), "id": id})
	return Result{Kind: HardDeleted}, nil
}

// ReplayHardDeleteTx applies a hard delete received from another device
// inside the caller's transaction: the tombstone is persisted as received,
// keeping the deleting actor's attribution, dependents registered for
// cascade are hard-deleted with their own tombstones and change log entries
// so the removals propagate onward, and the row itself is removed. The
// dependency check is skipped; an absent row yields NotFound, matching a
// forced delete. actor is the device performing the replay and attributes
// the cascaded deletions.
func (s *Service) ReplayHardDeleteTx(ctx context.Context, tx *sql.Tx, ts *models.Tombstone, actor models.Actor) (Result, error) {
	if ts.EntityType != s.target.Table() {
		return Result{}, apperrors.Newf(apperrors.ErrSyncRouting,
			"tombstone for table %q replayed on %q delete service", ts.EntityType, s.target.Table())
	}
	if err := s.tombstones.CreateTx(ctx, tx, ts); err != nil {
		return Result{}, err
	}
	exists, err := s.target.ExistsTx(ctx, tx, string(ts.EntityID))
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{Kind: NotFound}, nil
	}
	for _, c := range s.cascades {
		if err := s.cascadeDelete(ctx, tx, c, ts.EntityID, actor); err != nil {
			return Result{}, err
		}
	}
	if err := s.target.HardDeleteTx(ctx, tx, string(ts.EntityID)); err != nil {
		return Result{}, err
	}
	return Result{Kind: HardDeleted}, nil
}

// hardDeleteRowTx writes the tombstone, the change log entry, and the row
// removal for one entity inside tx.
func (s *Service) hardDeleteRowTx(ctx context.Context, tx *sql.Tx, target Target, id models.UUID, actor models.Actor) error {
	ts := models.NewTombstone(id, target.Table(), actor)
	if err := s.tombstones.CreateTx(ctx, tx, ts); err != nil {
		return err
	}
	entry := &models.ChangeLogEntry{
		OperationID:   ts.OperationID,
		EntityTable:   target.Table(),
		EntityID:      id,
		OperationType: models.OpHardDelete,
		Timestamp:     ts.DeletedAt,
		UserID:        actor.UserID,
		DeviceID:      actor.DeviceID,
	}
	if err := s.ledger.AppendTx(ctx, tx, entry); err != nil {
		return err
	}
	return target.HardDeleteTx(ctx, tx, string(id))
}

func (s *Service) cascadeDelete(ctx context.Context, tx *sql.Tx, c cascade, parentID models.UUID, actor models.Actor) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM "+c.target.Table()+" WHERE "+c.column+" = ?", parentID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to list cascade rows", err)
	}
	var ids []models.UUID
	for rows.Next() {
		var id models.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return apperrors.Wrap(apperrors.ErrStorage, "failed to scan cascade row", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to iterate cascade rows", err)
	}

	for _, id := range ids {
		if err := s.hardDeleteRowTx(ctx, tx, c.target, id, actor); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) softDelete(ctx context.Context, id models.UUID, actor models.Actor, blocking []string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := s.target.SoftDeleteTx(ctx, tx, string(id), actor); err != nil {
		return Result{}, err
	}
	// the entry documents the local action; the merge protocol ignores it
	// on other devices
	entry := &models.ChangeLogEntry{
		OperationID:   models.UUID(uuid.New()),
		EntityTable:   s.target.Table(),
		EntityID:      id,
		OperationType: models.OpDelete,
		Timestamp:     models.NowMillis(),
		UserID:        actor.UserID,
		DeviceID:      actor.DeviceID,
	}
	if err := s.ledger.AppendTx(ctx, tx, entry); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrStorage, "failed to commit soft delete", err)
	}
	logging.Info("soft deleted entity", logging.Fields{"table": s.target.Table(), "id": id})
	return Result{Kind: SoftDeleted, Dependencies: blocking}, nil
}
