// Package models provides shared types for the Corius HTTP API and external
// tools. These types mirror the API JSON and are stable for use by
// pkg/client and other consumers.
package models

import "time"

// PropertyValue is one typed property value on an item.
type PropertyValue struct {
	Type      string     `json:"type"`
	Text      string     `json:"text,omitempty"`
	Number    float64    `json:"number,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Status    string     `json:"status,omitempty"`
	Relations []string   `json:"relations,omitempty"`
}

// EmbedRef pins an embed block to a database view by stable ids.
type EmbedRef struct {
	DatabaseID         string `json:"database_id"`
	ViewID             string `json:"view_id"`
	ViewType           string `json:"view_type"`
	RelationPropertyID string `json:"relation_property_id,omitempty"`
}

// Block is one ordered content unit of an item.
type Block struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Done  bool      `json:"done,omitempty"`
	Embed *EmbedRef `json:"embed,omitempty"`
}

// Item is a page, task, or database row.
type Item struct {
	ID          string                   `json:"id"`
	Title       string                   `json:"title"`
	Type        string                   `json:"type"`
	ParentID    string                   `json:"parent_id,omitempty"`
	ContainerID string                   `json:"container_id,omitempty"`
	Properties  map[string]PropertyValue `json:"properties,omitempty"`
	Blocks      []Block                  `json:"blocks,omitempty"`
	Favorite    bool                     `json:"favorite,omitempty"`
	Archived    bool                     `json:"archived,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// RollupSpec aggregates a property over related items.
type RollupSpec struct {
	RelationPropertyID string `json:"relation_property_id"`
	TargetPropertyID   string `json:"target_property_id,omitempty"`
	Aggregate          string `json:"aggregate"`
}

// FormulaSpec derives a value from sibling properties.
type FormulaSpec struct {
	Operation string   `json:"operation"`
	Operands  []string `json:"operands"`
}

// PropertySpec describes one schema property of a database.
type PropertySpec struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Type        string       `json:"type"`
	Options     []string     `json:"options,omitempty"`
	Rollup      *RollupSpec  `json:"rollup,omitempty"`
	Formula     *FormulaSpec `json:"formula,omitempty"`
}

// Filter is one view filter predicate.
type Filter struct {
	PropertyID   string   `json:"property_id,omitempty"`
	PropertyName string   `json:"property_name,omitempty"`
	Op           string   `json:"op"`
	Value        string   `json:"value,omitempty"`
	Values       []string `json:"values,omitempty"`
}

// Sort is one view sort key.
type Sort struct {
	PropertyID   string `json:"property_id,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
	Descending   bool   `json:"descending,omitempty"`
}

// View is a saved view over a database.
type View struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Filters           []Filter `json:"filters,omitempty"`
	Sorts             []Sort   `json:"sorts,omitempty"`
	GroupByPropertyID string   `json:"group_by_property_id,omitempty"`
}

// Database is a schema-bearing collection of items with saved views.
type Database struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Schema        map[string]PropertySpec `json:"schema,omitempty"`
	Views         []View                  `json:"views,omitempty"`
	DefaultViewID string                  `json:"default_view_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// ActionRequest is the POST /actions body: a catalog intent, parameters,
// and an optional free-text target query.
type ActionRequest struct {
	Intent string            `json:"intent"`
	Params map[string]string `json:"params,omitempty"`
	Query  string            `json:"query,omitempty"`
}

// ConfirmRequest resolves a pending action: accept with an optional
// candidate choice, or reject.
type ConfirmRequest struct {
	Token       string `json:"token"`
	Accept      bool   `json:"accept"`
	ChoiceIndex *int   `json:"choice_index,omitempty"`
}

// Candidate is one resolution candidate attached to an ambiguous outcome.
type Candidate struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionOutcome is the structured result of a dispatch or confirm call.
// Success and pending-confirmation share this shape.
type ActionOutcome struct {
	ActionID             string      `json:"action_id"`
	Success              bool        `json:"success"`
	RequiresConfirmation bool        `json:"requires_confirmation,omitempty"`
	ConfirmationToken    string      `json:"confirmation_token,omitempty"`
	Message              string      `json:"message,omitempty"`
	Error                string      `json:"error,omitempty"`
	Candidates           []Candidate `json:"candidates,omitempty"`
}

// AuditEntry records one action's outcome.
type AuditEntry struct {
	ActionID      string    `json:"action_id"`
	Intent        string    `json:"intent"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	TargetSummary string    `json:"target_summary,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	SnapshotRef   string    `json:"snapshot_ref,omitempty"`
}

// QueryRequest is the POST /databases/{id}/query body. ViewID selects a
// saved view's filters and sorts; explicit filters/sorts extend them.
type QueryRequest struct {
	ViewID  string   `json:"view_id,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Sorts   []Sort   `json:"sorts,omitempty"`
}

// QueryResponse is the rows of a database query in view order.
type QueryResponse struct {
	Rows []Item `json:"rows"`
}
