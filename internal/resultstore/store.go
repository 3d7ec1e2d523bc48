package resultstore

import (
	"context"
	"time"

	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/param"
)

// Record is one persisted successful cook.
type Record struct {
	InstanceID string
	Definition string
	Seq        uint64
	Params     param.Snapshot
	Mesh       *geometry.Mesh
	StoredAt   time.Time
}

// Store persists records keyed by instance id.
type Store interface {
	// Save replaces the record of r.InstanceID.
	Save(ctx context.Context, r Record) error
	// Load returns the record of id. The bool is false when there is none.
	Load(ctx context.Context, id string) (Record, bool, error)
	// Delete removes the record of id. Deleting a missing record is not an
	// error.
	Delete(ctx context.Context, id string) error
	// IDs returns the ids of every stored record.
	IDs(ctx context.Context) ([]string, error)
	Close() error
}
