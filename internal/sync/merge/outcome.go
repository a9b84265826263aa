package merge

import (
	"github.com/andenet/fieldsync/internal/models"
)

// Kind classifies what a merge did to the local row.
type Kind string

const (
	// KindCreated means no local row existed and the remote state was
	// inserted. An incoming create that races an existing row reports
	// KindUpdated instead.
	KindCreated Kind = "created"
	// KindUpdated means the remote state won last-write-wins and replaced
	// the local row.
	KindUpdated Kind = "updated"
	// KindNoOp means the local row was kept, either because the remote
	// version was not newer or because the change does not propagate.
	KindNoOp Kind = "noop"
	// KindConflictDetected is reserved for resolution strategies that can
	// surface a conflict instead of resolving it. Whole-record
	// last-write-wins always resolves, so it is never produced here.
	KindConflictDetected Kind = "conflict_detected"
	// KindHardDeleted means the local row (if any) was removed.
	KindHardDeleted Kind = "hard_deleted"
)

// Outcome reports the result of merging one remote change. Versions are only
// set when a local/remote comparison actually happened.
type Outcome struct {
	Kind          Kind
	EntityID      models.UUID
	Reason        string
	LocalVersion  int64
	RemoteVersion int64
}

// LostLWW reports whether the remote change carried state that lost the
// version comparison against the local row. Used to feed the conflict log.
func (o Outcome) LostLWW() bool {
	return o.Kind == KindNoOp && o.RemoteVersion != 0 && o.LocalVersion >= o.RemoteVersion
}

func created(id models.UUID) Outcome {
	return Outcome{Kind: KindCreated, EntityID: id}
}

func updated(id models.UUID, local, remote int64) Outcome {
	return Outcome{Kind: KindUpdated, EntityID: id, LocalVersion: local, RemoteVersion: remote}
}

func noOp(id models.UUID, reason string, local, remote int64) Outcome {
	return Outcome{Kind: KindNoOp, EntityID: id, Reason: reason, LocalVersion: local, RemoteVersion: remote}
}

func hardDeleted(id models.UUID) Outcome {
	return Outcome{Kind: KindHardDeleted, EntityID: id}
}
