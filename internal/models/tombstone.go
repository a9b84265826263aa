package models

import (
	"github.com/andenet/fieldsync/internal/uuid"
)

// Tombstone marks a hard-deleted entity so the deletion can be replayed on
// every device. At most one tombstone exists per entity id; replays keep the
// one with the latest DeletedAt.
type Tombstone struct {
	ID                UUID   `json:"id"`
	EntityID          UUID   `json:"entity_id"`
	EntityType        string `json:"entity_type"`
	DeletedBy         UUID   `json:"deleted_by"`
	DeletedByDeviceID UUID   `json:"deleted_by_device_id,omitempty"`
	DeletedAt         int64  `json:"deleted_at"`
	OperationID       UUID   `json:"operation_id"`
}

// TableName returns the database table name for Tombstone.
func (Tombstone) TableName() string {
	return "tombstones"
}

// NewTombstone builds a tombstone for entityID in table, attributed to actor
// at the current time, with fresh identity and operation id.
func NewTombstone(entityID UUID, table string, actor Actor) *Tombstone {
	return &Tombstone{
		ID:                UUID(uuid.New()),
		EntityID:          entityID,
		EntityType:        table,
		DeletedBy:         actor.UserID,
		DeletedByDeviceID: actor.DeviceID,
		DeletedAt:         NowMillis(),
		OperationID:       UUID(uuid.New()),
	}
}
