// Package models provides data model definitions for the fieldsync data layer.
package models

import (
	"database/sql/driver"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	if u == "" {
		return nil, nil
	}
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Actor is the (user, device) pair attributed to a mutation.
type Actor struct {
	UserID   UUID `json:"user_id"`
	DeviceID UUID `json:"device_id"`
}

// NowMillis returns the current wall-clock time in unix milliseconds, the
// resolution used for all record versions and change timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Provenance records who last touched a single field and when. It exists for
// display and audit only; the merge decision never reads it (the record-level
// UpdatedAt is the unit of conflict resolution).
type Provenance struct {
	UpdatedAt int64 `json:"updated_at,omitempty"`
	UpdatedBy UUID  `json:"updated_by,omitempty"`
	DeviceID  UUID  `json:"device_id,omitempty"`
}

// IsZero reports whether the field was never individually touched.
func (p Provenance) IsZero() bool {
	return p.UpdatedAt == 0 && p.UpdatedBy == "" && p.DeviceID == ""
}

// TouchedBy builds a Provenance for a field modified by actor at the given
// unix-millisecond timestamp.
func TouchedBy(actor Actor, at int64) Provenance {
	return Provenance{UpdatedAt: at, UpdatedBy: actor.UserID, DeviceID: actor.DeviceID}
}

// SyncMeta is the record footer shared by every syncable entity: identity,
// the record-level version used by last-write-wins reconciliation, and
// creator/updater/deleter attribution. DeletedAt is the local-only soft
// delete flag and is never propagated between devices.
type SyncMeta struct {
	ID                UUID  `json:"id"`
	CreatedAt         int64 `json:"created_at"`
	UpdatedAt         int64 `json:"updated_at"`
	CreatedBy         UUID  `json:"created_by,omitempty"`
	CreatedByDeviceID UUID  `json:"created_by_device_id,omitempty"`
	UpdatedBy         UUID  `json:"updated_by,omitempty"`
	UpdatedByDeviceID UUID  `json:"updated_by_device_id,omitempty"`
	DeletedAt         int64 `json:"deleted_at,omitempty"`
	DeletedBy         UUID  `json:"deleted_by,omitempty"`
	DeletedByDeviceID UUID  `json:"deleted_by_device_id,omitempty"`
}

// RecordID returns the entity id as a plain string.
func (m *SyncMeta) RecordID() string {
	return string(m.ID)
}

// RecordVersion returns the record-level version compared by the merge
// protocol. Higher wins; ties keep the local copy.
func (m *SyncMeta) RecordVersion() int64 {
	return m.UpdatedAt
}

// IsDeleted reports whether the record is soft-deleted locally.
func (m *SyncMeta) IsDeleted() bool {
	return m.DeletedAt != 0
}

// Touch stamps the record as updated by actor now.
func (m *SyncMeta) Touch(actor Actor) {
	m.UpdatedAt = NowMillis()
	m.UpdatedBy = actor.UserID
	m.UpdatedByDeviceID = actor.DeviceID
}

// UpdatedAtTime returns the record version as time.Time.
func (m *SyncMeta) UpdatedAtTime() time.Time {
	return time.UnixMilli(m.UpdatedAt)
}
