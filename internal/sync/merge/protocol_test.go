package merge_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/andenet/fieldsync/internal/adapters"
	"github.com/andenet/fieldsync/internal/db"
	"github.com/andenet/fieldsync/internal/models"
	"github.com/andenet/fieldsync/internal/sync/merge"
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

// applyDonor runs one protocol step in its own committed transaction.
func applyDonor(t *testing.T, sqlDB *sql.DB, op models.OperationType, id models.UUID, payload []byte, origin models.UUID) merge.Outcome {
	t.Helper()
	tx, err := sqlDB.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()
	outcome, err := merge.Apply(context.Background(), tx, adapters.NewDonorAdapter(), op, id, payload, origin)
	if err != nil {
		t.Fatalf("Failed to apply %s: %v", op, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return outcome
}

func donorPayload(t *testing.T, id models.UUID, name string, updatedAt int64) []byte {
	t.Helper()
	d := models.Donor{
		SyncMeta: models.SyncMeta{ID: id, CreatedAt: updatedAt, UpdatedAt: updatedAt},
		Name:     name,
	}
	payload, err := json.Marshal(&d)
	if err != nil {
		t.Fatalf("Failed to marshal donor: %v", err)
	}
	return payload
}

func TestHardDeleteThenReplayIsNoOp(t *testing.T) {
	sqlDB := setupTestDB(t)
	id := models.UUID(uuid.New())
	origin := models.UUID(uuid.New())

	outcome := applyDonor(t, sqlDB, models.OpCreate, id, donorPayload(t, id, "Nordic Aid", 100), origin)
	if outcome.Kind != merge.KindCreated {
		t.Fatalf("Expected created, got %s", outcome.Kind)
	}

	outcome = applyDonor(t, sqlDB, models.OpHardDelete, id, nil, origin)
	if outcome.Kind != merge.KindHardDeleted {
		t.Errorf("Expected hard_deleted on first delete, got %s", outcome.Kind)
	}

	outcome = applyDonor(t, sqlDB, models.OpHardDelete, id, nil, origin)
	if outcome.Kind != merge.KindNoOp {
		t.Errorf("Expected noop when the row is already absent, got %s", outcome.Kind)
	}
}

func TestHardDeleteOnAbsentRowIsNoOp(t *testing.T) {
	sqlDB := setupTestDB(t)

	outcome := applyDonor(t, sqlDB, models.OpHardDelete, models.UUID(uuid.New()), nil, models.UUID(uuid.New()))
	if outcome.Kind != merge.KindNoOp {
		t.Errorf("Expected noop for an unknown entity, got %s", outcome.Kind)
	}
}

func TestHardDeleteRemovesSoftDeletedRow(t *testing.T) {
	sqlDB := setupTestDB(t)
	ctx := context.Background()
	id := models.UUID(uuid.New())
	origin := models.UUID(uuid.New())
	actor := models.Actor{UserID: models.UUID(uuid.New()), DeviceID: origin}

	applyDonor(t, sqlDB, models.OpCreate, id, donorPayload(t, id, "Flagged", 100), origin)

	tx, err := sqlDB.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	if err := adapters.NewDonorAdapter().SoftDeleteTx(ctx, tx, string(id), actor); err != nil {
		t.Fatalf("Failed to soft delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit soft delete: %v", err)
	}

	// the row is hidden but still present, so the delete must land
	outcome := applyDonor(t, sqlDB, models.OpHardDelete, id, nil, origin)
	if outcome.Kind != merge.KindHardDeleted {
		t.Errorf("Expected hard_deleted for a soft-deleted row, got %s", outcome.Kind)
	}
}
