package models

import (
	"github.com/andenet/fieldsync/internal/uuid"
)

// ConflictLog records a remote update that lost last-write-wins against the
// local copy. Rows are informational; nothing replays them.
type ConflictLog struct {
	ID            UUID   `json:"id"`
	EntityTable   string `json:"entity_table"`
	EntityID      UUID   `json:"entity_id"`
	LocalVersion  int64  `json:"local_version"`
	RemoteVersion int64  `json:"remote_version"`
	RemoteUserID  UUID   `json:"remote_user_id,omitempty"`
	RemoteDevice  UUID   `json:"remote_device_id,omitempty"`
	Resolution    string `json:"resolution"`
	CreatedAt     int64  `json:"created_at"`
}

// TableName returns the database table name for ConflictLog.
func (ConflictLog) TableName() string {
	return "conflict_log"
}

// Resolution values. Whole-record last-write-wins only ever keeps one side.
const (
	ResolutionKeptLocal = "kept_local"
)

// NewConflictLog builds a kept-local conflict row for a losing remote update.
func NewConflictLog(table string, entityID UUID, localVersion, remoteVersion int64, remoteUser, remoteDevice UUID) *ConflictLog {
	return &ConflictLog{
		ID:            UUID(uuid.New()),
		EntityTable:   table,
		EntityID:      entityID,
		LocalVersion:  localVersion,
		RemoteVersion: remoteVersion,
		RemoteUserID:  remoteUser,
		RemoteDevice:  remoteDevice,
		Resolution:    ResolutionKeptLocal,
		CreatedAt:     NowMillis(),
	}
}
