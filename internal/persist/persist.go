// Package persist defines the persistence gateway: a collaborator that
// durably writes full workspace snapshots and returns the last written one
// on load. The store never does partial writes; every save covers the whole
// entity set, which keeps the gateway contract trivial and crash-tolerant.
package persist

import (
	"context"

	"github.com/webanalyst/corius/internal/workspace"
)

// Snapshot is the full serializable entity set: every item and database.
type Snapshot struct {
	Items     []workspace.Item     `json:"items"`
	Databases []workspace.Database `json:"databases"`
}

// Gateway is the persistence contract. Load returns nil when nothing has
// been saved yet. Implementations: the SQLite gateway in this package and
// *postgres.Gateway in internal/persist/postgres.
type Gateway interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}
