// Package mcp exposes validated workspace tools for external tool-call
// interfaces (MCP servers, voice assistants). Every mutation goes through
// the agent action service so it is audited and rollbackable; the toolkit
// never touches the store's write API directly.
package mcp

import (
	"context"
	"sort"

	"github.com/webanalyst/corius/internal/agent"
	"github.com/webanalyst/corius/internal/store"
	"github.com/webanalyst/corius/internal/workspace"
)

// defaultListLimit caps list results handed to tool callers.
const defaultListLimit = 50

// Toolkit exposes tool methods backed by the action service and store.
type Toolkit struct {
	Agent *agent.Service
	Store *store.Store
}

// CreateTask creates a task with the given title, optionally inside the
// database named by container.
func (t *Toolkit) CreateTask(ctx context.Context, title, container string) agent.Outcome {
	params := map[string]string{"title": title}
	if container != "" {
		params["container_id"] = container
	}
	return t.Agent.Dispatch(ctx, agent.Request{Intent: agent.IntentCreateTask, Params: params})
}

// CompleteTask marks the task matching the free-text query as done.
func (t *Toolkit) CompleteTask(ctx context.Context, query string) agent.Outcome {
	return t.Agent.Dispatch(ctx, agent.Request{Intent: agent.IntentCompleteTask, Query: query})
}

// MoveTask moves the task matching the free-text query to the given status
// column.
func (t *Toolkit) MoveTask(ctx context.Context, query, to string) agent.Outcome {
	return t.Agent.Dispatch(ctx, agent.Request{
		Intent: agent.IntentMoveTask,
		Query:  query,
		Params: map[string]string{"to": to},
	})
}

// Confirm resolves a pending destructive or ambiguous action by token.
// choice selects a candidate for ambiguous actions; pass -1 when there is
// only one.
func (t *Toolkit) Confirm(ctx context.Context, token string, accept bool, choice int) agent.Outcome {
	return t.Agent.Confirm(ctx, token, accept, choice)
}

// Rollback undoes the most recent successful action.
func (t *Toolkit) Rollback(ctx context.Context) agent.Outcome {
	return t.Agent.Dispatch(ctx, agent.Request{Intent: agent.IntentRollbackAction})
}

// ListTasks returns live tasks, most recently updated first. Limit 0 uses a
// reasonable cap.
func (t *Toolkit) ListTasks(ctx context.Context, limit int) []workspace.Item {
	if limit <= 0 {
		limit = defaultListLimit
	}
	tasks := t.Store.ItemsOfType(workspace.ItemTypeTask, false)
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].UpdatedAt.Equal(tasks[j].UpdatedAt) {
			return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks
}

// RecentItems returns the most recently touched items, newest first.
func (t *Toolkit) RecentItems(ctx context.Context, limit int) []workspace.Item {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return t.Store.RecentItems(limit)
}
