package models

import (
	"time"

	apperrors "github.com/andenet/fieldsync/internal/errors"
)

// OperationType is the closed set of change kinds a change log entry may
// carry. Unknown values are rejected at validation and routing time.
type OperationType string

const (
	OpCreate     OperationType = "create"
	OpUpdate     OperationType = "update"
	OpDelete     OperationType = "delete"
	OpHardDelete OperationType = "hard_delete"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete, OpHardDelete:
		return true
	}
	return false
}

// ParseOperationType converts a raw string into an OperationType, rejecting
// anything outside the closed set.
func ParseOperationType(s string) (OperationType, error) {
	t := OperationType(s)
	if !t.Valid() {
		return "", apperrors.Newf(apperrors.ErrValidation, "unknown operation type %q", s)
	}
	return t, nil
}

// ChangeLogEntry is one row of the append-only mutation ledger. Create and
// update entries carry the full record state in NewValue; delete entries
// carry no payload. Entries are immutable once written except for the sync
// bookkeeping columns (SyncBatchID, ProcessedAt, SyncError).
type ChangeLogEntry struct {
	OperationID   UUID          `json:"operation_id"`
	EntityTable   string        `json:"entity_table"`
	EntityID      UUID          `json:"entity_id"`
	OperationType OperationType `json:"operation_type"`
	FieldName     string        `json:"field_name,omitempty"`
	OldValue      []byte        `json:"old_value,omitempty"`
	NewValue      []byte        `json:"new_value,omitempty"`
	Timestamp     int64         `json:"timestamp"`
	UserID        UUID          `json:"user_id"`
	DeviceID      UUID          `json:"device_id,omitempty"`
	SyncBatchID   UUID          `json:"sync_batch_id,omitempty"`
	ProcessedAt   int64         `json:"processed_at,omitempty"`
	SyncError     string        `json:"sync_error,omitempty"`
}

// TableName returns the database table name for ChangeLogEntry.
func (ChangeLogEntry) TableName() string {
	return "change_log"
}

// Validate checks the fields the ledger refuses to store without.
func (e *ChangeLogEntry) Validate() error {
	if e.OperationID == "" {
		return apperrors.New(apperrors.ErrValidation, "change log entry missing operation_id")
	}
	if e.EntityTable == "" {
		return apperrors.New(apperrors.ErrValidation, "change log entry missing entity_table")
	}
	if e.EntityID == "" {
		return apperrors.New(apperrors.ErrValidation, "change log entry missing entity_id")
	}
	if !e.OperationType.Valid() {
		return apperrors.Newf(apperrors.ErrValidation, "unknown operation type %q", e.OperationType)
	}
	if e.Timestamp <= 0 {
		return apperrors.New(apperrors.ErrValidation, "change log entry missing timestamp")
	}
	if e.UserID == "" {
		return apperrors.New(apperrors.ErrValidation, "change log entry missing user_id")
	}
	return nil
}

// Time returns the change timestamp as time.Time.
func (e *ChangeLogEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
