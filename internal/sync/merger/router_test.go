package merger

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/andenet/fieldsync/internal/adapters"
	"github.com/andenet/fieldsync/internal/db"
	"github.com/andenet/fieldsync/internal/deletion"
	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
	"github.com/andenet/fieldsync/internal/sync/changelog"
	"github.com/andenet/fieldsync/internal/uuid"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.InitSchema(); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return database.DB
}

func newTestRegistry(t *testing.T, sqlDB *sql.DB) *Registry {
	t.Helper()
	ledger := changelog.NewStore(sqlDB)
	tombstones := changelog.NewTombstoneStore(sqlDB)
	conflicts := changelog.NewConflictStore(sqlDB)
	checker := deletion.NewDependencyChecker(sqlDB)
	newService := func(target deletion.Target) *deletion.Service {
		return deletion.NewService(sqlDB, target, tombstones, ledger, checker)
	}
	activities := adapters.NewActivityAdapter()
	registry, err := NewRegistry(sqlDB,
		New[*models.StrategicGoal](sqlDB, adapters.NewStrategicGoalAdapter(), newService(adapters.NewStrategicGoalAdapter()), conflicts),
		New[*models.Project](sqlDB, adapters.NewProjectAdapter(), newService(adapters.NewProjectAdapter()).WithCascade("project_id", activities), conflicts),
		New[*models.Activity](sqlDB, activities, newService(activities), conflicts),
		New[*models.Donor](sqlDB, adapters.NewDonorAdapter(), newService(adapters.NewDonorAdapter()), conflicts),
		New[*models.Participant](sqlDB, adapters.NewParticipantAdapter(), newService(adapters.NewParticipantAdapter()), conflicts),
		New[*models.Workshop](sqlDB, adapters.NewWorkshopAdapter(), newService(adapters.NewWorkshopAdapter()), conflicts),
		New[*models.Livelihood](sqlDB, adapters.NewLivelihoodAdapter(), newService(adapters.NewLivelihoodAdapter()), conflicts),
		New[*models.ProjectFunding](sqlDB, adapters.NewProjectFundingAdapter(), newService(adapters.NewProjectFundingAdapter()), conflicts),
	)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return registry
}

func newActor() models.Actor {
	return models.Actor{UserID: models.UUID(uuid.New()), DeviceID: models.UUID(uuid.New())}
}

func donorChange(t *testing.T, op models.OperationType, id models.UUID, name string, updatedAt int64, from models.Actor) *models.ChangeLogEntry {
	t.Helper()
	var payload []byte
	if op == models.OpCreate || op == models.OpUpdate {
		d := models.Donor{
			SyncMeta: models.SyncMeta{
				ID:        id,
				CreatedAt: updatedAt,
				UpdatedAt: updatedAt,
				CreatedBy: from.UserID,
				UpdatedBy: from.UserID,
			},
			Name:     name,
			NameProv: models.TouchedBy(from, updatedAt),
		}
		var err error
		payload, err = json.Marshal(&d)
		if err != nil {
			t.Fatalf("Failed to marshal donor: %v", err)
		}
	}
	return &models.ChangeLogEntry{
		OperationID:   models.UUID(uuid.New()),
		EntityTable:   "donors",
		EntityID:      id,
		OperationType: op,
		NewValue:      payload,
		Timestamp:     updatedAt,
		UserID:        from.UserID,
		DeviceID:      from.DeviceID,
	}
}

func getDonor(t *testing.T, sqlDB *sql.DB, id models.UUID) (*models.Donor, bool) {
	t.Helper()
	tx, err := sqlDB.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()
	d, found, err := adapters.NewDonorAdapter().FindByIDTx(context.Background(), tx, string(id))
	if err != nil {
		t.Fatalf("Failed to load donor: %v", err)
	}
	return d, found
}

func TestApplyCreateThenUpdate(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Nordic Aid", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}
	d, found := getDonor(t, sqlDB, id)
	if !found {
		t.Fatal("Expected donor to exist after create")
	}
	if d.Name != "Nordic Aid" {
		t.Errorf("Expected name Nordic Aid, got %q", d.Name)
	}

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpUpdate, id, "Nordic Aid Fund", 150, remote), local); err != nil {
		t.Fatalf("Failed to apply update: %v", err)
	}
	d, _ = getDonor(t, sqlDB, id)
	if d.Name != "Nordic Aid Fund" || d.UpdatedAt != 150 {
		t.Errorf("Expected newer remote state to win, got %q at %d", d.Name, d.UpdatedAt)
	}
}

func TestLastWriteWinsIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	local := newActor()
	deviceA, deviceB := newActor(), newActor()
	id := models.UUID(uuid.New())

	apply := func(t *testing.T, order []*models.ChangeLogEntry) *models.Donor {
		sqlDB := setupTestDB(t)
		registry := newTestRegistry(t, sqlDB)
		for _, change := range order {
			if err := registry.ApplyChange(ctx, change, local); err != nil {
				t.Fatalf("Failed to apply change: %v", err)
			}
		}
		d, found := getDonor(t, sqlDB, id)
		if !found {
			t.Fatal("Expected donor to exist")
		}
		return d
	}

	older := donorChange(t, models.OpUpdate, id, "Old Name", 100, deviceA)
	newer := donorChange(t, models.OpUpdate, id, "New Name", 150, deviceB)

	forward := apply(t, []*models.ChangeLogEntry{older, newer})
	reverse := apply(t, []*models.ChangeLogEntry{newer, older})

	if forward.Name != "New Name" || reverse.Name != "New Name" {
		t.Errorf("Expected both orders to converge on New Name, got %q and %q", forward.Name, reverse.Name)
	}
	if forward.UpdatedAt != reverse.UpdatedAt {
		t.Errorf("Expected identical versions, got %d and %d", forward.UpdatedAt, reverse.UpdatedAt)
	}
}

func TestEqualVersionsKeepLocal(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Kept", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}
	if err := registry.ApplyChange(ctx, donorChange(t, models.OpUpdate, id, "Discarded", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply tied update: %v", err)
	}

	d, _ := getDonor(t, sqlDB, id)
	if d.Name != "Kept" {
		t.Errorf("Expected tie to keep local copy, got %q", d.Name)
	}
}

func TestLocalEchoIsSkipped(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local := newActor()
	id := models.UUID(uuid.New())

	// a change attributed to ourselves must not be re-applied
	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Echo", 100, local), local); err != nil {
		t.Fatalf("Echo apply returned error: %v", err)
	}
	if _, found := getDonor(t, sqlDB, id); found {
		t.Error("Expected echoed change to be skipped")
	}

	// same user on another device is remote
	otherDevice := models.Actor{UserID: local.UserID, DeviceID: models.UUID(uuid.New())}
	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Other Device", 100, otherDevice), local); err != nil {
		t.Fatalf("Failed to apply change from other device: %v", err)
	}
	if _, found := getDonor(t, sqlDB, id); !found {
		t.Error("Expected change from another device to apply")
	}
}

func TestMissingDeviceIDTreatedAsRemote(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local := newActor()
	id := models.UUID(uuid.New())

	change := donorChange(t, models.OpCreate, id, "Legacy", 100, models.Actor{UserID: local.UserID})
	change.DeviceID = ""
	if err := registry.ApplyChange(ctx, change, local); err != nil {
		t.Fatalf("Failed to apply change without device id: %v", err)
	}
	if _, found := getDonor(t, sqlDB, id); !found {
		t.Error("Expected change without device attribution to apply")
	}
}

func TestCreateRaceActsAsUpdate(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "First", 150, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}
	// a second create for the same id with an older version loses
	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Second", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply racing create: %v", err)
	}

	d, _ := getDonor(t, sqlDB, id)
	if d.Name != "First" {
		t.Errorf("Expected racing create to lose last-write-wins, got %q", d.Name)
	}
}

func TestSoftDeleteDoesNotPropagate(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Survivor", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}
	if err := registry.ApplyChange(ctx, donorChange(t, models.OpDelete, id, "", 150, remote), local); err != nil {
		t.Fatalf("Failed to apply soft delete change: %v", err)
	}

	if _, found := getDonor(t, sqlDB, id); !found {
		t.Error("Expected local row to survive a remote soft delete")
	}
}

func TestHardDeleteThroughChangeStream(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Doomed", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}
	hardDelete := donorChange(t, models.OpHardDelete, id, "", 150, remote)
	if err := registry.ApplyChange(ctx, hardDelete, local); err != nil {
		t.Fatalf("Failed to apply hard delete: %v", err)
	}

	if _, found := getDonor(t, sqlDB, id); found {
		t.Error("Expected row to be removed")
	}
	ts, found, err := changelog.NewTombstoneStore(sqlDB).FindByEntityID(ctx, id)
	if err != nil || !found {
		t.Fatalf("Expected tombstone to be stored: %v", err)
	}
	if ts.DeletedAt != 150 {
		t.Errorf("Expected tombstone deleted_at 150, got %d", ts.DeletedAt)
	}

	// replaying the deletion is a no-op, not an error
	if err := registry.ApplyChange(ctx, hardDelete, local); err != nil {
		t.Fatalf("Replaying hard delete failed: %v", err)
	}
}

func TestApplyTombstoneIsIdempotent(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Doomed", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}

	ts := models.NewTombstone(id, "donors", remote)
	for i := 0; i < 3; i++ {
		if err := registry.ApplyTombstone(ctx, ts, local); err != nil {
			t.Fatalf("Tombstone replay %d failed: %v", i, err)
		}
	}
	if _, found := getDonor(t, sqlDB, id); found {
		t.Error("Expected row to be removed")
	}
	list, err := changelog.NewTombstoneStore(sqlDB).ListByEntityType(ctx, "donors")
	if err != nil {
		t.Fatalf("Failed to list tombstones: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected one tombstone after replays, got %d", len(list))
	}
}

func TestTombstoneReplayCascadesToDependents(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	projectID := models.UUID(uuid.New())
	activityID := models.UUID(uuid.New())

	// a project and an activity only this device knows about
	tx, err := sqlDB.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	project := models.Project{
		SyncMeta: models.SyncMeta{ID: projectID, CreatedAt: 100, UpdatedAt: 100, CreatedBy: local.UserID, UpdatedBy: local.UserID},
		Name:     "Water Access",
	}
	if err := adapters.NewProjectAdapter().UpsertRemoteTx(ctx, tx, &project, local.DeviceID); err != nil {
		t.Fatalf("Failed to insert project: %v", err)
	}
	activity := models.Activity{
		SyncMeta:    models.SyncMeta{ID: activityID, CreatedAt: 100, UpdatedAt: 100, CreatedBy: local.UserID, UpdatedBy: local.UserID},
		ProjectID:   projectID,
		Description: "Drill borehole",
	}
	if err := adapters.NewActivityAdapter().UpsertRemoteTx(ctx, tx, &activity, local.DeviceID); err != nil {
		t.Fatalf("Failed to insert activity: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit fixtures: %v", err)
	}

	if err := registry.ApplyTombstone(ctx, models.NewTombstone(projectID, "projects", remote), local); err != nil {
		t.Fatalf("Failed to replay tombstone: %v", err)
	}

	var n int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM activities WHERE project_id = ?", projectID).Scan(&n); err != nil {
		t.Fatalf("Failed to count activities: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected activities to fall with their project, found %d orphan row(s)", n)
	}
	if _, found, err := changelog.NewTombstoneStore(sqlDB).FindByEntityID(ctx, activityID); err != nil || !found {
		t.Errorf("Expected a tombstone for the cascaded activity (found=%v, err=%v)", found, err)
	}
	// the cascaded removal must propagate onward from this device
	entries, err := changelog.NewStore(sqlDB).FindByEntity(ctx, "activities", activityID)
	if err != nil {
		t.Fatalf("Failed to list activity changes: %v", err)
	}
	var hardDeletes int
	for _, e := range entries {
		if e.OperationType == models.OpHardDelete && e.DeviceID == local.DeviceID {
			hardDeletes++
		}
	}
	if hardDeletes != 1 {
		t.Errorf("Expected one local hard_delete entry for the cascaded activity, got %d", hardDeletes)
	}
}

func TestHardDeleteChangeCascadesToDependents(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	projectID := models.UUID(uuid.New())
	activityID := models.UUID(uuid.New())

	tx, err := sqlDB.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	project := models.Project{
		SyncMeta: models.SyncMeta{ID: projectID, CreatedAt: 100, UpdatedAt: 100, CreatedBy: local.UserID, UpdatedBy: local.UserID},
		Name:     "Water Access",
	}
	if err := adapters.NewProjectAdapter().UpsertRemoteTx(ctx, tx, &project, local.DeviceID); err != nil {
		t.Fatalf("Failed to insert project: %v", err)
	}
	activity := models.Activity{
		SyncMeta:    models.SyncMeta{ID: activityID, CreatedAt: 100, UpdatedAt: 100, CreatedBy: local.UserID, UpdatedBy: local.UserID},
		ProjectID:   projectID,
		Description: "Drill borehole",
	}
	if err := adapters.NewActivityAdapter().UpsertRemoteTx(ctx, tx, &activity, local.DeviceID); err != nil {
		t.Fatalf("Failed to insert activity: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit fixtures: %v", err)
	}

	change := &models.ChangeLogEntry{
		OperationID:   models.UUID(uuid.New()),
		EntityTable:   "projects",
		EntityID:      projectID,
		OperationType: models.OpHardDelete,
		Timestamp:     150,
		UserID:        remote.UserID,
		DeviceID:      remote.DeviceID,
	}
	if err := registry.ApplyChange(ctx, change, local); err != nil {
		t.Fatalf("Failed to apply hard delete change: %v", err)
	}

	var n int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM activities WHERE project_id = ?", projectID).Scan(&n); err != nil {
		t.Fatalf("Failed to count activities: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected activities to fall with their project, found %d orphan row(s)", n)
	}
	if _, found, err := changelog.NewTombstoneStore(sqlDB).FindByEntityID(ctx, activityID); err != nil || !found {
		t.Errorf("Expected a tombstone for the cascaded activity (found=%v, err=%v)", found, err)
	}
}

func TestLosingUpdateIsRecordedAsConflict(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	id := models.UUID(uuid.New())

	if err := registry.ApplyChange(ctx, donorChange(t, models.OpCreate, id, "Current", 200, remote), local); err != nil {
		t.Fatalf("Failed to apply create: %v", err)
	}
	if err := registry.ApplyChange(ctx, donorChange(t, models.OpUpdate, id, "Stale", 100, remote), local); err != nil {
		t.Fatalf("Failed to apply stale update: %v", err)
	}

	conflicts, err := changelog.NewConflictStore(sqlDB).ListByEntity(ctx, "donors", id)
	if err != nil {
		t.Fatalf("Failed to list conflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("Expected one conflict row, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.LocalVersion != 200 || c.RemoteVersion != 100 || c.Resolution != models.ResolutionKeptLocal {
		t.Errorf("Unexpected conflict row: %+v", c)
	}
}

func TestApplyBatchIsAllOrNothing(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	ctx := context.Background()
	local, remote := newActor(), newActor()
	first := models.UUID(uuid.New())

	good := donorChange(t, models.OpCreate, first, "Good", 100, remote)
	bad := donorChange(t, models.OpUpdate, models.UUID(uuid.New()), "Bad", 150, remote)
	bad.NewValue = []byte(`not json`)

	if _, err := registry.ApplyBatch(ctx, []*models.ChangeLogEntry{good, bad}, local); err == nil {
		t.Fatal("Expected batch to fail on invalid payload")
	}
	if _, found := getDonor(t, sqlDB, first); found {
		t.Error("Expected first change to be rolled back with the batch")
	}

	good2 := donorChange(t, models.OpCreate, models.UUID(uuid.New()), "Also Good", 120, remote)
	handled, err := registry.ApplyBatch(ctx, []*models.ChangeLogEntry{good, good2}, local)
	if err != nil {
		t.Fatalf("Failed to apply valid batch: %v", err)
	}
	if len(handled) != 2 {
		t.Errorf("Expected 2 handled operations, got %d", len(handled))
	}
	if _, found := getDonor(t, sqlDB, first); !found {
		t.Error("Expected donor to exist after successful batch")
	}
}

func TestRoutingRejectsUnknownTable(t *testing.T) {
	sqlDB := setupTestDB(t)
	registry := newTestRegistry(t, sqlDB)
	local, remote := newActor(), newActor()

	change := donorChange(t, models.OpCreate, models.UUID(uuid.New()), "X", 100, remote)
	change.EntityTable = "invoices"
	err := registry.ApplyChange(context.Background(), change, local)
	if !apperrors.Is(err, apperrors.ErrSyncRouting) {
		t.Errorf("Expected routing error, got %v", err)
	}
}

func TestRegistryRequiresEveryKnownTable(t *testing.T) {
	sqlDB := setupTestDB(t)
	donors := adapters.NewDonorAdapter()
	svc := deletion.NewService(sqlDB, donors, changelog.NewTombstoneStore(sqlDB),
		changelog.NewStore(sqlDB), deletion.NewDependencyChecker(sqlDB))
	conflicts := changelog.NewConflictStore(sqlDB)

	_, err := NewRegistry(sqlDB,
		New[*models.Donor](sqlDB, donors, svc, conflicts),
	)
	if err == nil {
		t.Error("Expected registry construction to fail with missing mergers")
	}
}
