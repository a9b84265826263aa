package merger

import (
	"context"
	"database/sql"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
)

// KnownTables is the closed set of syncable entity tables. Routing refuses
// anything outside it; adding an entity means adding it here and registering
// its merger.
var KnownTables = []string{
	"strategic_goals",
	"projects",
	"activities",
	"donors",
	"participants",
	"workshops",
	"livelihoods",
	"project_funding",
}

// Registry dispatches changes and tombstones to the merger of their entity
// table. Construction fails unless exactly the known tables are covered, so
// a routing gap is caught at startup rather than mid-sync.
type Registry struct {
	db      *sql.DB
	mergers map[string]EntityMerger
}

// NewRegistry builds a registry over the given mergers.
func NewRegistry(db *sql.DB, mergers ...EntityMerger) (*Registry, error) {
	known := make(map[string]bool, len(KnownTables))
	for _, t := range KnownTables {
		known[t] = true
	}

	byTable := make(map[string]EntityMerger, len(mergers))
	for _, m := range mergers {
		table := m.EntityTable()
		if !known[table] {
			return nil, apperrors.Newf(apperrors.ErrSyncRouting, "merger registered for unknown table %q", table)
		}
		if _, dup := byTable[table]; dup {
			return nil, apperrors.Newf(apperrors.ErrInternal, "duplicate merger for table %q", table)
		}
		byTable[table] = m
	}
	for _, t := range KnownTables {
		if _, ok := byTable[t]; !ok {
			return nil, apperrors.Newf(apperrors.ErrInternal, "no merger registered for table %q", t)
		}
	}
	return &Registry{db: db, mergers: byTable}, nil
}

func (r *Registry) forTable(table string) (EntityMerger, error) {
	m, ok := r.mergers[table]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSyncRouting, "no merger for table %q", table)
	}
	return m, nil
}

// ApplyChange routes one change to its entity merger and applies it in its
// own transaction.
func (r *Registry) ApplyChange(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error {
	m, err := r.forTable(change.EntityTable)
	if err != nil {
		return err
	}
	return m.ApplyChange(ctx, change, actor)
}

// ApplyTombstone routes one tombstone to its entity merger.
func (r *Registry) ApplyTombstone(ctx context.Context, ts *models.Tombstone, actor models.Actor) error {
	m, err := r.forTable(ts.EntityType)
	if err != nil {
		return err
	}
	return m.ApplyHardDelete(ctx, ts, actor)
}

// ApplyBatch applies a batch of changes in one transaction, all or nothing.
// Routing is validated up front so an unknown table fails before any row is
// touched. Returns the operation ids handled, including local echoes that
// were skipped.
func (r *Registry) ApplyBatch(ctx context.Context, changes []*models.ChangeLogEntry, actor models.Actor) ([]models.UUID, error) {
	routed := make([]EntityMerger, len(changes))
	for i, change := range changes {
		m, err := r.forTable(change.EntityTable)
		if err != nil {
			return nil, err
		}
		routed[i] = m
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	handled := make([]models.UUID, 0, len(changes))
	for i, change := range changes {
		if err := routed[i].ApplyChangeTx(ctx, tx, change, actor); err != nil {
			return nil, err
		}
		handled = append(handled, change.OperationID)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to commit batch", err)
	}
	return handled, nil
}
