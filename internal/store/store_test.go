package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/webanalyst/corius/internal/workspace"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func mustAdd(t *testing.T, s *Store, it workspace.Item) {
	t.Helper()
	if err := s.AddItem(context.Background(), it); err != nil {
		t.Fatalf("AddItem %s: %v", it.ID, err)
	}
}

func TestAddItem_andGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, workspace.Item{ID: "i1", Title: "Note", Type: workspace.ItemTypePage})

	got, ok := s.ItemByID("i1")
	if !ok {
		t.Fatal("ItemByID: not found")
	}
	if got.Title != "Note" || got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("ItemByID: got %+v", got)
	}

	// Reads hand out copies; mutating the returned value must not leak in.
	got.Title = "Mutated"
	again, _ := s.ItemByID("i1")
	if again.Title != "Note" {
		t.Fatal("ItemByID returned a shared reference")
	}

	if err := s.AddItem(ctx, workspace.Item{ID: "i1", Type: workspace.ItemTypePage}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate add: got %v, want ErrDuplicateID", err)
	}
	if err := s.AddItem(ctx, workspace.Item{Type: workspace.ItemTypePage}); !errors.Is(err, ErrIDRequired) {
		t.Fatalf("empty id: got %v, want ErrIDRequired", err)
	}
}

func TestAddItem_parentValidation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddItem(ctx, workspace.Item{ID: "orphan", Type: workspace.ItemTypePage, ParentID: "missing"})
	if !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("missing parent: got %v", err)
	}

	mustAdd(t, s, workspace.Item{ID: "p", Type: workspace.ItemTypePage, Archived: true})
	err = s.AddItem(ctx, workspace.Item{ID: "c", Type: workspace.ItemTypePage, ParentID: "p"})
	if !errors.Is(err, ErrParentArchived) {
		t.Fatalf("archived parent: got %v", err)
	}

	err = s.AddItem(ctx, workspace.Item{ID: "row", Type: workspace.ItemTypeRow, ContainerID: "nodb"})
	if !errors.Is(err, ErrDatabaseNotFound) {
		t.Fatalf("missing container: got %v", err)
	}
}

func TestIndices_followMutations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddDatabase(ctx, workspace.Database{ID: "db1", Name: "Tasks"}); err != nil {
		t.Fatalf("AddDatabase: %v", err)
	}
	if err := s.AddDatabase(ctx, workspace.Database{ID: "db2", Name: "Notes"}); err != nil {
		t.Fatalf("AddDatabase: %v", err)
	}
	mustAdd(t, s, workspace.Item{ID: "parent", Type: workspace.ItemTypePage})
	mustAdd(t, s, workspace.Item{ID: "t1", Type: workspace.ItemTypeTask, ContainerID: "db1", ParentID: "parent"})
	mustAdd(t, s, workspace.Item{ID: "t2", Type: workspace.ItemTypeTask, ContainerID: "db1"})

	if got := len(s.ItemsOfType(workspace.ItemTypeTask, false)); got != 2 {
		t.Fatalf("ItemsOfType(task): got %d", got)
	}
	if got := len(s.ItemsInContainer("db1", false)); got != 2 {
		t.Fatalf("ItemsInContainer(db1): got %d", got)
	}
	if got := len(s.ItemsWithParent("parent", false)); got != 1 {
		t.Fatalf("ItemsWithParent(parent): got %d", got)
	}

	// Moving t1 to db2 must update the container index both ways.
	it, _ := s.ItemByID("t1")
	it.ContainerID = "db2"
	if err := s.UpdateItem(ctx, it); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got := len(s.ItemsInContainer("db1", false)); got != 1 {
		t.Fatalf("ItemsInContainer(db1) after move: got %d", got)
	}
	if got := len(s.ItemsInContainer("db2", false)); got != 1 {
		t.Fatalf("ItemsInContainer(db2) after move: got %d", got)
	}

	if err := s.DeleteItem(ctx, "t2"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if got := len(s.ItemsOfType(workspace.ItemTypeTask, false)); got != 1 {
		t.Fatalf("ItemsOfType(task) after delete: got %d", got)
	}
}

func TestItemsOfType_archivedExcludedByDefault(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	mustAdd(t, s, workspace.Item{ID: "live", Type: workspace.ItemTypeTask})
	mustAdd(t, s, workspace.Item{ID: "gone", Type: workspace.ItemTypeTask, Archived: true})

	if got := len(s.ItemsOfType(workspace.ItemTypeTask, false)); got != 1 {
		t.Fatalf("without archived: got %d", got)
	}
	if got := len(s.ItemsOfType(workspace.ItemTypeTask, true)); got != 2 {
		t.Fatalf("with archived: got %d", got)
	}
}

func TestUpdateItem_monotonicUpdatedAt(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, workspace.Item{ID: "i1", Type: workspace.ItemTypePage})
	prev, _ := s.ItemByID("i1")
	for i := 0; i < 5; i++ {
		it, _ := s.ItemByID("i1")
		it.Title = "rev"
		if err := s.UpdateItem(ctx, it); err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
		cur, _ := s.ItemByID("i1")
		if !cur.UpdatedAt.After(prev.UpdatedAt) {
			t.Fatalf("UpdatedAt did not advance: %v -> %v", prev.UpdatedAt, cur.UpdatedAt)
		}
		prev = cur
	}
}

func TestUpdateItem_cycleRejected(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, workspace.Item{ID: "a", Type: workspace.ItemTypePage})
	mustAdd(t, s, workspace.Item{ID: "b", Type: workspace.ItemTypePage, ParentID: "a"})
	mustAdd(t, s, workspace.Item{ID: "c", Type: workspace.ItemTypePage, ParentID: "b"})

	a, _ := s.ItemByID("a")
	a.ParentID = "c"
	if err := s.UpdateItem(ctx, a); !errors.Is(err, ErrCycle) {
		t.Fatalf("cycle: got %v, want ErrCycle", err)
	}

	// Self-parent is the one-hop cycle.
	b, _ := s.ItemByID("b")
	b.ParentID = "b"
	if err := s.UpdateItem(ctx, b); !errors.Is(err, ErrCycle) {
		t.Fatalf("self parent: got %v, want ErrCycle", err)
	}
}

func TestDeleteItem_detachesChildren(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, workspace.Item{ID: "p", Type: workspace.ItemTypePage})
	mustAdd(t, s, workspace.Item{ID: "c1", Type: workspace.ItemTypePage, ParentID: "p"})
	mustAdd(t, s, workspace.Item{ID: "c2", Type: workspace.ItemTypeTask, ParentID: "p"})

	if err := s.DeleteItem(ctx, "p"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	for _, id := range []string{"c1", "c2"} {
		it, ok := s.ItemByID(id)
		if !ok {
			t.Fatalf("child %s was deleted with its parent", id)
		}
		if it.ParentID != "" {
			t.Fatalf("child %s still references deleted parent", id)
		}
	}
	if got := len(s.ItemsWithParent("p", true)); got != 0 {
		t.Fatalf("ItemsWithParent after delete: got %d", got)
	}

	if err := s.DeleteItem(ctx, "p"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("double delete: got %v", err)
	}
}

func TestDeleteDatabase_removesRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddDatabase(ctx, workspace.Database{ID: "db", Name: "Tasks"}); err != nil {
		t.Fatalf("AddDatabase: %v", err)
	}
	mustAdd(t, s, workspace.Item{ID: "r1", Type: workspace.ItemTypeTask, ContainerID: "db"})
	mustAdd(t, s, workspace.Item{ID: "loose", Type: workspace.ItemTypePage})

	if err := s.DeleteDatabase(ctx, "db"); err != nil {
		t.Fatalf("DeleteDatabase: %v", err)
	}
	if _, ok := s.ItemByID("r1"); ok {
		t.Fatal("row survived database delete")
	}
	if _, ok := s.ItemByID("loose"); !ok {
		t.Fatal("unrelated item was deleted")
	}
	if _, ok := s.DatabaseByID("db"); ok {
		t.Fatal("database still present")
	}
}

func TestRecentItems_orderAndArchive(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	mustAdd(t, s, workspace.Item{ID: "a", Title: "A", Type: workspace.ItemTypePage})
	mustAdd(t, s, workspace.Item{ID: "b", Title: "B", Type: workspace.ItemTypePage})
	mustAdd(t, s, workspace.Item{ID: "c", Title: "C", Type: workspace.ItemTypePage})

	// Touch "a" again; it becomes the most recent.
	a, _ := s.ItemByID("a")
	if err := s.UpdateItem(ctx, a); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	got := s.RecentItems(10)
	ids := make([]string, len(got))
	for i, it := range got {
		ids[i] = it.ID
	}
	if diff := cmp.Diff([]string{"a", "c", "b"}, ids); diff != "" {
		t.Fatalf("recency order (-want +got):\n%s", diff)
	}

	// Archiving removes from the recent list without deleting.
	c, _ := s.ItemByID("c")
	c.Archived = true
	if err := s.UpdateItem(ctx, c); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	got = s.RecentItems(10)
	ids = ids[:0]
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Fatalf("recency after archive (-want +got):\n%s", diff)
	}
}

func TestLastUpdate_advancesPerMutation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	before := s.LastUpdate()
	mustAdd(t, s, workspace.Item{ID: "x", Type: workspace.ItemTypePage})
	mid := s.LastUpdate()
	if mid <= before {
		t.Fatalf("LastUpdate did not advance on add: %d -> %d", before, mid)
	}
	it, _ := s.ItemByID("x")
	if err := s.UpdateItem(ctx, it); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if s.LastUpdate() <= mid {
		t.Fatal("LastUpdate did not advance on update")
	}

	// Reads never advance it.
	cur := s.LastUpdate()
	_, _ = s.ItemByID("x")
	_ = s.AllItems(true)
	if s.LastUpdate() != cur {
		t.Fatal("read advanced LastUpdate")
	}
}

func TestSeedDemo_idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedDemo(ctx); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	dbs := s.Databases()
	if len(dbs) != 1 || dbs[0].Name != "Tasks" {
		t.Fatalf("Databases after seed: %+v", dbs)
	}
	if _, ok := dbs[0].StatusProperty(); !ok {
		t.Fatal("seeded database has no status property")
	}
	tasks := s.ItemsOfType(workspace.ItemTypeTask, false)
	if len(tasks) != 3 {
		t.Fatalf("seeded tasks: got %d", len(tasks))
	}

	if err := s.SeedDemo(ctx); err != nil {
		t.Fatalf("second SeedDemo: %v", err)
	}
	if got := len(s.ItemsOfType(workspace.ItemTypeTask, false)); got != 3 {
		t.Fatalf("SeedDemo is not idempotent: %d tasks", got)
	}
}

func TestSnapshot_deepCopy(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	mustAdd(t, s, workspace.Item{
		ID: "i", Type: workspace.ItemTypePage,
		Properties: map[string]workspace.PropertyValue{"k": {Type: workspace.PropertyText, Text: "v"}},
	})
	snap := s.Snapshot()
	snap.Items[0].Properties["k"] = workspace.PropertyValue{Type: workspace.PropertyText, Text: "changed"}

	it, _ := s.ItemByID("i")
	if it.Properties["k"].Text != "v" {
		t.Fatal("Snapshot shares property maps with the store")
	}
}

func TestUpdatedAtStampedOnce(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	explicit := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mustAdd(t, s, workspace.Item{ID: "i", Type: workspace.ItemTypePage, CreatedAt: explicit, UpdatedAt: explicit})
	it, _ := s.ItemByID("i")
	if !it.CreatedAt.Equal(explicit) || !it.UpdatedAt.Equal(explicit) {
		t.Fatalf("explicit timestamps were overwritten: %+v", it)
	}
}
