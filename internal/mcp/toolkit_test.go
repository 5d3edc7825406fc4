package mcp

import (
	"context"
	"testing"

	"github.com/webanalyst/corius/internal/agent"
	"github.com/webanalyst/corius/internal/store"
	"github.com/webanalyst/corius/internal/workspace"
)

func newToolkit(t *testing.T) (*Toolkit, context.Context) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })
	return &Toolkit{Agent: agent.New(st), Store: st}, ctx
}

func TestCreateTask(t *testing.T) {
	t.Parallel()
	tk, ctx := newToolkit(t)

	out := tk.CreateTask(ctx, "New task", "")
	if !out.Success {
		t.Fatalf("CreateTask: %+v", out)
	}
	tasks := tk.ListTasks(ctx, 0)
	if len(tasks) != 1 || tasks[0].Title != "New task" {
		t.Fatalf("ListTasks: got %+v", tasks)
	}
}

func TestCompleteTask_byQuery(t *testing.T) {
	t.Parallel()
	tk, ctx := newToolkit(t)

	if out := tk.CreateTask(ctx, "Water the plants", ""); !out.Success {
		t.Fatalf("CreateTask: %+v", out)
	}
	out := tk.CompleteTask(ctx, "water the plants")
	if !out.Success {
		t.Fatalf("CompleteTask: %+v", out)
	}
	tasks := tk.ListTasks(ctx, 0)
	if len(tasks) != 1 {
		t.Fatalf("ListTasks: got %d tasks", len(tasks))
	}
	if got := tasks[0].Properties["status"].Status; got != "done" {
		t.Errorf("status: got %q, want done", got)
	}
}

func TestRollback_undoesCreate(t *testing.T) {
	t.Parallel()
	tk, ctx := newToolkit(t)

	if out := tk.CreateTask(ctx, "Oops", ""); !out.Success {
		t.Fatalf("CreateTask: %+v", out)
	}
	if out := tk.Rollback(ctx); !out.Success {
		t.Fatalf("Rollback: %+v", out)
	}
	if tasks := tk.ListTasks(ctx, 0); len(tasks) != 0 {
		t.Fatalf("expected no tasks after rollback, got %+v", tasks)
	}
}

func TestListTasks_limitAndOrder(t *testing.T) {
	t.Parallel()
	tk, ctx := newToolkit(t)

	for _, title := range []string{"a", "b", "c"} {
		if out := tk.CreateTask(ctx, title, ""); !out.Success {
			t.Fatalf("CreateTask %q: %+v", title, out)
		}
	}
	tasks := tk.ListTasks(ctx, 2)
	if len(tasks) != 2 {
		t.Fatalf("limit: got %d tasks", len(tasks))
	}
	// Newest first.
	if tasks[0].Title != "c" {
		t.Errorf("order: got %q first", tasks[0].Title)
	}
}

func TestMoveTask_requiresStatusColumn(t *testing.T) {
	t.Parallel()
	tk, ctx := newToolkit(t)

	if err := tk.Store.AddDatabase(ctx, workspace.Database{
		ID:   "db1",
		Name: "Tasks",
		Schema: map[string]workspace.PropertySpec{
			"st": {ID: "st", DisplayName: "Status", Type: workspace.PropertyStatus, Options: []string{"To Do", "Done"}},
		},
	}); err != nil {
		t.Fatalf("AddDatabase: %v", err)
	}
	if out := tk.CreateTask(ctx, "Row task", "db1"); !out.Success {
		t.Fatalf("CreateTask: %+v", out)
	}
	out := tk.MoveTask(ctx, "row task", "Done")
	if !out.Success {
		t.Fatalf("MoveTask: %+v", out)
	}
	tasks := tk.ListTasks(ctx, 0)
	if got := tasks[0].Properties["st"].Status; got != "Done" {
		t.Errorf("status: got %q, want Done", got)
	}
}
