// Package sync assembles the offline sync engine: the change ledger,
// tombstone and conflict stores, the per-entity mergers, and the delete
// services, all on one SQLite database.
package sync

import (
	"context"
	"database/sql"

	"github.com/andenet/fieldsync/internal/adapters"
	"github.com/andenet/fieldsync/internal/db"
	"github.com/andenet/fieldsync/internal/deletion"
	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
	"github.com/andenet/fieldsync/internal/sync/changelog"
	"github.com/andenet/fieldsync/internal/sync/merger"
)

// Engine is the entry point the application layer talks to.
type Engine struct {
	db         *sql.DB
	ledger     *changelog.Store
	tombstones *changelog.TombstoneStore
	conflicts  *changelog.ConflictStore
	registry   *merger.Registry
	deletes    map[string]*deletion.Service
}

// NewEngine wires the engine over an open database. The schema must already
// be initialized.
func NewEngine(database *db.DB) (*Engine, error) {
	sqlDB := database.DB
	ledger := changelog.NewStore(sqlDB)
	tombstones := changelog.NewTombstoneStore(sqlDB)
	conflicts := changelog.NewConflictStore(sqlDB)
	checker := deletion.NewDependencyChecker(sqlDB)

	goals := adapters.NewStrategicGoalAdapter()
	projects := adapters.NewProjectAdapter()
	activities := adapters.NewActivityAdapter()
	donors := adapters.NewDonorAdapter()
	participants := adapters.NewParticipantAdapter()
	workshops := adapters.NewWorkshopAdapter()
	livelihoods := adapters.NewLivelihoodAdapter()
	funding := adapters.NewProjectFundingAdapter()

	newService := func(target deletion.Target) *deletion.Service {
		return deletion.NewService(sqlDB, target, tombstones, ledger, checker)
	}
	deletes := map[string]*deletion.Service{
		"strategic_goals": newService(goals),
		// activities fall with their project
		"projects":        newService(projects).WithCascade("project_id", activities),
		"activities":      newService(activities),
		"donors":          newService(donors),
		"participants":    newService(participants),
		"workshops":       newService(workshops),
		"livelihoods":     newService(livelihoods),
		"project_funding": newService(funding),
	}

	registry, err := merger.NewRegistry(sqlDB,
		merger.New[*models.StrategicGoal](sqlDB, goals, deletes["strategic_goals"], conflicts),
		merger.New[*models.Project](sqlDB, projects, deletes["projects"], conflicts),
		merger.New[*models.Activity](sqlDB, activities, deletes["activities"], conflicts),
		merger.New[*models.Donor](sqlDB, donors, deletes["donors"], conflicts),
		merger.New[*models.Participant](sqlDB, participants, deletes["participants"], conflicts),
		merger.New[*models.Workshop](sqlDB, workshops, deletes["workshops"], conflicts),
		merger.New[*models.Livelihood](sqlDB, livelihoods, deletes["livelihoods"], conflicts),
		merger.New[*models.ProjectFunding](sqlDB, funding, deletes["project_funding"], conflicts),
	)
	if err != nil {
		return nil, err
	}

	return &Engine{
		db:         sqlDB,
		ledger:     ledger,
		tombstones: tombstones,
		conflicts:  conflicts,
		registry:   registry,
		deletes:    deletes,
	}, nil
}

// Ledger exposes the change log store.
func (e *Engine) Ledger() *changelog.Store {
	return e.ledger
}

// Tombstones exposes the tombstone store.
func (e *Engine) Tombstones() *changelog.TombstoneStore {
	return e.tombstones
}

// Conflicts exposes the conflict store.
func (e *Engine) Conflicts() *changelog.ConflictStore {
	return e.conflicts
}

// ApplyChange merges one incoming change.
func (e *Engine) ApplyChange(ctx context.Context, change *models.ChangeLogEntry, actor models.Actor) error {
	return e.registry.ApplyChange(ctx, change, actor)
}

// ApplyTombstone replays one incoming hard-delete tombstone.
func (e *Engine) ApplyTombstone(ctx context.Context, ts *models.Tombstone, actor models.Actor) error {
	return e.registry.ApplyTombstone(ctx, ts, actor)
}

// ApplyBatch merges a batch of incoming changes atomically.
func (e *Engine) ApplyBatch(ctx context.Context, changes []*models.ChangeLogEntry, actor models.Actor) ([]models.UUID, error) {
	return e.registry.ApplyBatch(ctx, changes, actor)
}

// Delete removes an entity from the named table according to opts.
func (e *Engine) Delete(ctx context.Context, table string, id models.UUID, actor models.Actor, opts deletion.Options) (deletion.Result, error) {
	svc, ok := e.deletes[table]
	if !ok {
		return deletion.Result{}, apperrors.Newf(apperrors.ErrSyncRouting, "no delete service for table %q", table)
	}
	return svc.Delete(ctx, id, actor, opts)
}

// PendingUploads returns how many local changes still await shipping.
func (e *Engine) PendingUploads(ctx context.Context) (int64, error) {
	return e.ledger.CountUnsynced(ctx)
}
