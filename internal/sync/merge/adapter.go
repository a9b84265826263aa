// Package merge implements whole-record last-write-wins reconciliation of
// remote state against the local database. The algorithm is written once
// over a small per-entity capability interface instead of being copied into
// every entity's repository.
package merge

import (
	"context"
	"database/sql"

	"github.com/andenet/fieldsync/internal/models"
)

// Record is the minimal surface the protocol needs from an entity: identity
// and the record-level version compared by last-write-wins.
type Record interface {
	RecordID() string
	RecordVersion() int64
}

// Adapter supplies the per-entity storage operations the protocol composes.
// Implementations must keep every method inside the transaction they are
// handed; the protocol never commits or rolls back itself.
type Adapter[T Record] interface {
	// Table returns the entity table name the adapter serves.
	Table() string

	// DecodeState parses a change payload into full record state. It must
	// reject payloads missing identity or version.
	DecodeState(payload []byte) (T, error)

	// FindByIDTx loads the local copy, excluding soft-deleted rows. The
	// boolean reports whether a row was found.
	FindByIDTx(ctx context.Context, tx *sql.Tx, id string) (T, bool, error)

	// ExistsTx reports whether any row with id exists, soft-deleted or not.
	ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error)

	// UpsertRemoteTx writes the remote state over the local row (insert or
	// replace). origin is the sending device, used to fill provenance
	// device columns the remote payload left blank.
	UpsertRemoteTx(ctx context.Context, tx *sql.Tx, state T, origin models.UUID) error

	// HardDeleteTx removes the row outright. Deleting an absent row is not
	// an error.
	HardDeleteTx(ctx context.Context, tx *sql.Tx, id string) error
}
