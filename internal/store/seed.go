package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/webanalyst/corius/internal/workspace"
)

// SeedDemo inserts a small example workspace: a Tasks database with a kanban
// view and a handful of pages and tasks. No-op when any data already exists.
func (s *Store) SeedDemo(ctx context.Context) error {
	s.mu.RLock()
	empty := len(s.items) == 0 && len(s.databases) == 0
	s.mu.RUnlock()
	if !empty {
		return nil
	}

	statusID := uuid.NewString()
	dueID := uuid.NewString()
	boardViewID := uuid.NewString()
	tableViewID := uuid.NewString()
	db := workspace.Database{
		ID:   uuid.NewString(),
		Name: "Tasks",
		Schema: map[string]workspace.PropertySpec{
			statusID: {ID: statusID, DisplayName: "Status", Type: workspace.PropertyStatus, Options: []string{"To Do", "Doing", "Done"}},
			dueID:    {ID: dueID, DisplayName: "Due", Type: workspace.PropertyDate},
		},
		Views: []workspace.View{
			{ID: boardViewID, Name: "Board", Type: workspace.ViewKanban, GroupByPropertyID: statusID},
			{ID: tableViewID, Name: "All", Type: workspace.ViewTable, Sorts: []workspace.Sort{{PropertyID: dueID}}},
		},
		DefaultViewID: boardViewID,
	}
	if err := s.AddDatabase(ctx, db); err != nil {
		return err
	}

	inbox := workspace.Item{ID: uuid.NewString(), Title: "Inbox", Type: workspace.ItemTypePage}
	if err := s.AddItem(ctx, inbox); err != nil {
		return err
	}

	for _, seed := range []struct {
		title  string
		status string
	}{
		{"Buy milk", "To Do"},
		{"Write weekly review", "Doing"},
		{"File expense report", "To Do"},
	} {
		task := workspace.Item{
			ID:          uuid.NewString(),
			Title:       seed.title,
			Type:        workspace.ItemTypeTask,
			ParentID:    inbox.ID,
			ContainerID: db.ID,
			Properties: map[string]workspace.PropertyValue{
				statusID: {Type: workspace.PropertyStatus, Status: seed.status},
			},
		}
		if err := s.AddItem(ctx, task); err != nil {
			return err
		}
	}
	return nil
}
