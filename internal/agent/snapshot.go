package agent

import "github.com/webanalyst/corius/internal/workspace"

// itemSnapshot captures one item's state before a mutating action. A nil
// Prior records that the item did not exist; rolling back then deletes it.
type itemSnapshot struct {
	ItemID string
	Prior  *workspace.Item
}

// databaseSnapshot is the database analog of itemSnapshot.
type databaseSnapshot struct {
	DatabaseID string
	Prior      *workspace.Database
}

// snapshot is the opaque prior-state capture tied to one action. It is
// consumed (and invalidated) by rollback of that action.
type snapshot struct {
	ActionID  string
	Items     []itemSnapshot
	Databases []databaseSnapshot
}

// captureItem records the current state of an item id, or its absence.
func (s *Service) captureItem(snap *snapshot, id string) {
	if it, ok := s.store.ItemByID(id); ok {
		prior := it.Clone()
		snap.Items = append(snap.Items, itemSnapshot{ItemID: id, Prior: &prior})
		return
	}
	snap.Items = append(snap.Items, itemSnapshot{ItemID: id})
}

// captureDatabase records the current state of a database id, or its absence.
func (s *Service) captureDatabase(snap *snapshot, id string) {
	if d, ok := s.store.DatabaseByID(id); ok {
		prior := d.Clone()
		snap.Databases = append(snap.Databases, databaseSnapshot{DatabaseID: id, Prior: &prior})
		return
	}
	snap.Databases = append(snap.Databases, databaseSnapshot{DatabaseID: id})
}
