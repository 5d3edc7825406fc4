// Package store holds the authoritative in-memory workspace graph: items,
// databases, and the secondary indices that make scoped lookups O(1). All
// mutations pass through one mutex so readers never observe a half-applied
// mutation, and every data change schedules a debounced flush to the
// persistence gateway.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webanalyst/corius/internal/otel"
	"github.com/webanalyst/corius/internal/persist"
	"github.com/webanalyst/corius/internal/workspace"
)

// Store errors.
var (
	ErrItemNotFound     = errors.New("item not found")
	ErrDatabaseNotFound = errors.New("database not found")
	ErrDuplicateID      = errors.New("id already exists")
	ErrIDRequired       = errors.New("id is required")
	ErrParentNotFound   = errors.New("parent item not found")
	ErrParentArchived   = errors.New("parent item is archived")
	ErrCycle            = errors.New("parent chain would form a cycle")
)

// DefaultFlushDelay is the debounce window between a mutation and the flush
// it schedules.
const DefaultFlushDelay = 500 * time.Millisecond

// Options configures a Store.
type Options struct {
	// Gateway persists snapshots. Nil disables persistence entirely; the
	// store then lives purely in memory (used by tests).
	Gateway persist.Gateway
	// FlushDelay overrides the debounce window. Zero means DefaultFlushDelay.
	FlushDelay time.Duration
}

// Store is the indexed workspace store. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	items     map[string]*workspace.Item
	databases map[string]*workspace.Database

	// Secondary indices: id sets maintained synchronously with every
	// mutation, so scoped reads never scan the primary map.
	byType      map[workspace.ItemType]map[string]struct{}
	byContainer map[string]map[string]struct{}
	byParent    map[string]map[string]struct{}

	// recency holds item ids ordered most-recently-updated first.
	recency []string

	// lastUpdate is the coarse invalidation marker: it only ever grows, and
	// observers re-read whatever they need when it changes.
	lastUpdate atomic.Uint64

	gateway persist.Gateway
	flusher *flusher
}

// Open builds a store, loading the last snapshot from the gateway when one
// exists.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{
		items:       make(map[string]*workspace.Item),
		databases:   make(map[string]*workspace.Database),
		byType:      make(map[workspace.ItemType]map[string]struct{}),
		byContainer: make(map[string]map[string]struct{}),
		byParent:    make(map[string]map[string]struct{}),
		gateway:     opts.Gateway,
	}
	if opts.Gateway != nil {
		delay := opts.FlushDelay
		if delay <= 0 {
			delay = DefaultFlushDelay
		}
		s.flusher = newFlusher(delay, s.saveSnapshot)

		snap, err := opts.Gateway.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if snap != nil {
			s.mu.Lock()
			for i := range snap.Items {
				it := snap.Items[i].Clone()
				s.items[it.ID] = &it
				s.indexAdd(&it)
			}
			for i := range snap.Databases {
				d := snap.Databases[i].Clone()
				s.databases[d.ID] = &d
			}
			s.rebuildRecencyLocked()
			s.mu.Unlock()
		}
	}
	return s, nil
}

// Close drains any pending flush and closes the gateway.
func (s *Store) Close(ctx context.Context) error {
	err := s.ForceFlush(ctx)
	if s.gateway != nil {
		if cerr := s.gateway.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LastUpdate returns the monotonic invalidation marker. It advances on every
// data change; consumers re-query when it moves.
func (s *Store) LastUpdate() uint64 {
	return s.lastUpdate.Load()
}

// ForceFlush synchronously drains any pending debounce and performs one
// flush. Unlike the background path, its failure is returned to the caller
// so shutdown code can decide to retry or warn.
func (s *Store) ForceFlush(ctx context.Context) error {
	if s.flusher == nil {
		return nil
	}
	return s.flusher.Force(ctx)
}

func (s *Store) saveSnapshot(ctx context.Context) error {
	snap := s.Snapshot()
	return s.gateway.Save(ctx, snap)
}

// Snapshot returns a deep copy of the full entity set.
func (s *Store) Snapshot() persist.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := persist.Snapshot{
		Items:     make([]workspace.Item, 0, len(s.items)),
		Databases: make([]workspace.Database, 0, len(s.databases)),
	}
	for _, it := range s.items {
		snap.Items = append(snap.Items, it.Clone())
	}
	for _, d := range s.databases {
		snap.Databases = append(snap.Databases, d.Clone())
	}
	return snap
}

// markDirty advances the invalidation marker and schedules a flush. Callers
// hold the write lock.
func (s *Store) markDirty() {
	s.lastUpdate.Add(1)
	if s.flusher != nil {
		s.flusher.Schedule()
	}
}

// --- Reads ---

// ItemByID returns the item with the given id, archived or not.
func (s *Store) ItemByID(id string) (workspace.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return workspace.Item{}, false
	}
	return it.Clone(), true
}

// DatabaseByID returns the database with the given id.
func (s *Store) DatabaseByID(id string) (workspace.Database, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.databases[id]
	if !ok {
		return workspace.Database{}, false
	}
	return d.Clone(), true
}

// Databases returns all databases.
func (s *Store) Databases() []workspace.Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workspace.Database, 0, len(s.databases))
	for _, d := range s.databases {
		out = append(out, d.Clone())
	}
	return out
}

// ItemsOfType returns items of the given type. Archived items are excluded
// unless includeArchived is set.
func (s *Store) ItemsOfType(t workspace.ItemType, includeArchived bool) []workspace.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materializeLocked(s.byType[t], includeArchived)
}

// ItemsInContainer returns the rows of a database.
func (s *Store) ItemsInContainer(containerID string, includeArchived bool) []workspace.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materializeLocked(s.byContainer[containerID], includeArchived)
}

// ItemsWithParent returns the children of an item.
func (s *Store) ItemsWithParent(parentID string, includeArchived bool) []workspace.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materializeLocked(s.byParent[parentID], includeArchived)
}

// AllItems returns every item. Archived items are excluded unless
// includeArchived is set.
func (s *Store) AllItems(includeArchived bool) []workspace.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workspace.Item, 0, len(s.items))
	for _, it := range s.items {
		if it.Archived && !includeArchived {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

// RecentItems returns at most limit non-archived items, most recently
// updated first.
func (s *Store) RecentItems(limit int) []workspace.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workspace.Item, 0, limit)
	for _, id := range s.recency {
		if len(out) >= limit {
			break
		}
		it, ok := s.items[id]
		if !ok || it.Archived {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

func (s *Store) materializeLocked(ids map[string]struct{}, includeArchived bool) []workspace.Item {
	out := make([]workspace.Item, 0, len(ids))
	for id := range ids {
		it, ok := s.items[id]
		if !ok {
			continue
		}
		if it.Archived && !includeArchived {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

// --- Mutations ---

// AddItem inserts a new item. The id must be unset in the map; CreatedAt
// and UpdatedAt are stamped when zero. The parent, if any, must exist and
// not be archived.
func (s *Store) AddItem(ctx context.Context, it workspace.Item) error {
	if it.ID == "" {
		return ErrIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; ok {
		return fmt.Errorf("%w: item %s", ErrDuplicateID, it.ID)
	}
	if it.ParentID != "" {
		parent, ok := s.items[it.ParentID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrParentNotFound, it.ParentID)
		}
		if parent.Archived {
			return fmt.Errorf("%w: %s", ErrParentArchived, it.ParentID)
		}
	}
	if it.ContainerID != "" {
		if _, ok := s.databases[it.ContainerID]; !ok {
			return fmt.Errorf("%w: %s", ErrDatabaseNotFound, it.ContainerID)
		}
	}
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = now
	}
	stored := it.Clone()
	s.items[stored.ID] = &stored
	s.indexAdd(&stored)
	s.touchRecencyLocked(stored.ID)
	s.markDirty()
	otel.RecordMutation(ctx, "add_item", string(stored.Type))
	return nil
}

// UpdateItem replaces an existing item wholesale. UpdatedAt is bumped and
// never moves backwards. A parent change is validated against the ancestor
// chain; a cycle is rejected with ErrCycle.
func (s *Store) UpdateItem(ctx context.Context, it workspace.Item) error {
	if it.ID == "" {
		return ErrIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[it.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, it.ID)
	}
	if it.ParentID != "" && it.ParentID != old.ParentID {
		if _, ok := s.items[it.ParentID]; !ok {
			return fmt.Errorf("%w: %s", ErrParentNotFound, it.ParentID)
		}
		if s.cycleLocked(it.ID, it.ParentID) {
			return fmt.Errorf("%w: item %s", ErrCycle, it.ID)
		}
	}
	if it.ContainerID != "" && it.ContainerID != old.ContainerID {
		if _, ok := s.databases[it.ContainerID]; !ok {
			return fmt.Errorf("%w: %s", ErrDatabaseNotFound, it.ContainerID)
		}
	}
	now := time.Now().UTC()
	if !now.After(old.UpdatedAt) {
		now = old.UpdatedAt.Add(time.Nanosecond)
	}
	it.UpdatedAt = now
	if it.CreatedAt.IsZero() {
		it.CreatedAt = old.CreatedAt
	}
	stored := it.Clone()
	s.indexRemove(old)
	s.items[stored.ID] = &stored
	s.indexAdd(&stored)
	s.touchRecencyLocked(stored.ID)
	s.markDirty()
	otel.RecordMutation(ctx, "update_item", string(stored.Type))
	return nil
}

// DeleteItem removes an item. Children keep existing but are detached (their
// ParentID is cleared) so the parent invariant holds.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	s.indexRemove(old)
	delete(s.items, id)
	s.dropRecencyLocked(id)
	for childID := range s.byParent[id] {
		child := s.items[childID]
		s.indexRemove(child)
		child.ParentID = ""
		s.indexAdd(child)
	}
	delete(s.byParent, id)
	s.markDirty()
	otel.RecordMutation(ctx, "delete_item", string(old.Type))
	return nil
}

// AddDatabase inserts a new database.
func (s *Store) AddDatabase(ctx context.Context, d workspace.Database) error {
	if d.ID == "" {
		return ErrIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.databases[d.ID]; ok {
		return fmt.Errorf("%w: database %s", ErrDuplicateID, d.ID)
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	stored := d.Clone()
	s.databases[stored.ID] = &stored
	s.markDirty()
	otel.RecordMutation(ctx, "add_database", "database")
	return nil
}

// UpdateDatabase replaces an existing database wholesale.
func (s *Store) UpdateDatabase(ctx context.Context, d workspace.Database) error {
	if d.ID == "" {
		return ErrIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.databases[d.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, d.ID)
	}
	now := time.Now().UTC()
	if !now.After(old.UpdatedAt) {
		now = old.UpdatedAt.Add(time.Nanosecond)
	}
	d.UpdatedAt = now
	if d.CreatedAt.IsZero() {
		d.CreatedAt = old.CreatedAt
	}
	stored := d.Clone()
	s.databases[stored.ID] = &stored
	s.markDirty()
	otel.RecordMutation(ctx, "update_database", "database")
	return nil
}

// DeleteDatabase removes a database and every row it contains.
func (s *Store) DeleteDatabase(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.databases[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, id)
	}
	delete(s.databases, id)
	for rowID := range s.byContainer[id] {
		row := s.items[rowID]
		if row == nil {
			continue
		}
		s.indexRemove(row)
		delete(s.items, rowID)
		s.dropRecencyLocked(rowID)
	}
	delete(s.byContainer, id)
	s.markDirty()
	otel.RecordMutation(ctx, "delete_database", "database")
	return nil
}

// --- Index maintenance (callers hold the write lock) ---

func (s *Store) indexAdd(it *workspace.Item) {
	addToIndex(s.byType, it.Type, it.ID)
	if it.ContainerID != "" {
		addToIndex(s.byContainer, it.ContainerID, it.ID)
	}
	if it.ParentID != "" {
		addToIndex(s.byParent, it.ParentID, it.ID)
	}
}

func (s *Store) indexRemove(it *workspace.Item) {
	removeFromIndex(s.byType, it.Type, it.ID)
	if it.ContainerID != "" {
		removeFromIndex(s.byContainer, it.ContainerID, it.ID)
	}
	if it.ParentID != "" {
		removeFromIndex(s.byParent, it.ParentID, it.ID)
	}
}

func addToIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// cycleLocked walks the ancestor chain starting at parentID and reports
// whether it reaches itemID.
func (s *Store) cycleLocked(itemID, parentID string) bool {
	seen := make(map[string]struct{})
	cur := parentID
	for cur != "" {
		if cur == itemID {
			return true
		}
		if _, ok := seen[cur]; ok {
			// Pre-existing loop in stored data; treat as a cycle rather
			// than spinning.
			return true
		}
		seen[cur] = struct{}{}
		p, ok := s.items[cur]
		if !ok {
			return false
		}
		cur = p.ParentID
	}
	return false
}

// --- Recency (callers hold the write lock) ---

func (s *Store) touchRecencyLocked(id string) {
	s.dropRecencyLocked(id)
	s.recency = append([]string{id}, s.recency...)
}

func (s *Store) dropRecencyLocked(id string) {
	for i, v := range s.recency {
		if v == id {
			s.recency = append(s.recency[:i], s.recency[i+1:]...)
			return
		}
	}
}

func (s *Store) rebuildRecencyLocked() {
	s.recency = s.recency[:0]
	for id := range s.items {
		s.recency = append(s.recency, id)
	}
	// Most recently updated first; id breaks exact timestamp ties.
	sort.Slice(s.recency, func(i, j int) bool {
		a, b := s.items[s.recency[i]], s.items[s.recency[j]]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return s.recency[i] < s.recency[j]
	})
}
