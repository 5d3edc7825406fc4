// Package agent executes named, parameterized operations against the store
// on behalf of a voice- or chat-driven caller: it resolves free-text
// targets, gates ambiguous and destructive operations behind one-time
// confirmation tokens, snapshots every entity it is about to mutate so the
// last action can be rolled back, and appends an audit entry for every
// dispatched action.
package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webanalyst/corius/internal/otel"
	"github.com/webanalyst/corius/internal/store"
	"github.com/webanalyst/corius/internal/workspace"
)

// Request is one action submission: a catalog intent, its parameters, and
// an optional free-text target query. A caller that already knows the
// target passes params["id"] instead of Query.
type Request struct {
	Intent string            `json:"intent"`
	Params map[string]string `json:"params,omitempty"`
	Query  string            `json:"query,omitempty"`
}

// Outcome is the structured result of a dispatch or confirm call. Success
// and pending-confirmation outcomes share this one shape; only the field
// values differ.
type Outcome struct {
	ActionID             string      `json:"action_id"`
	Success              bool        `json:"success"`
	RequiresConfirmation bool        `json:"requires_confirmation,omitempty"`
	ConfirmationToken    string      `json:"confirmation_token,omitempty"`
	Message              string      `json:"message,omitempty"`
	Error                string      `json:"error,omitempty"`
	Candidates           []Candidate `json:"candidates,omitempty"`
}

// pendingAction is a dispatched action waiting on its confirmation token.
// It holds the decision, not the resolution: targets are re-resolved against
// current store state when the confirmation arrives.
type pendingAction struct {
	entry      *AuditEntry
	spec       IntentSpec
	req        Request
	candidates []Candidate
}

// Service is the agent action service. It owns the audit log and the
// snapshot table; entities are only ever touched through the store's
// mutation API.
type Service struct {
	store *store.Store

	mu        sync.Mutex
	pending   map[string]*pendingAction // confirmation token -> action
	entries   []*AuditEntry
	snapshots map[string]*snapshot // action id -> snapshot
	now       func() time.Time
}

// New builds a Service over the given store handle.
func New(st *store.Store) *Service {
	return &Service{
		store:     st,
		pending:   make(map[string]*pendingAction),
		snapshots: make(map[string]*snapshot),
		now:       time.Now,
	}
}

// Dispatch runs one action through the resolution and confirmation state
// machine. It never returns an error: every failure mode is reported on the
// Outcome and recorded in the audit log.
func (s *Service) Dispatch(ctx context.Context, req Request) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.newEntryLocked(req.Intent)
	spec, ok := Catalog[req.Intent]
	if !ok {
		return s.failLocked(ctx, entry, CodeValidationFailed, fmt.Sprintf("unknown intent %q", req.Intent))
	}
	for _, p := range spec.Required {
		if req.Params[p] == "" {
			return s.failLocked(ctx, entry, CodeValidationFailed, fmt.Sprintf("%s requires parameter %q", spec.Name, p))
		}
	}

	if spec.Name == IntentRollbackAction {
		return s.rollbackLocked(ctx, entry)
	}
	if spec.Name == IntentDeleteDatabase {
		return s.dispatchDeleteDatabaseLocked(ctx, entry, spec, req)
	}

	var target workspace.Item
	if spec.RequiresResolution {
		if id := req.Params["id"]; id != "" {
			it, ok := s.store.ItemByID(id)
			if !ok || it.Archived {
				return s.failLocked(ctx, entry, CodeNotFound, fmt.Sprintf("no item with id %s", id))
			}
			target = it
		} else {
			res := s.resolve(spec, req.Query)
			switch res.kind {
			case resolvedNone:
				otel.RecordResolution(ctx, "not_found")
				return s.failLocked(ctx, entry, CodeNotFound, fmt.Sprintf("nothing matches %q", req.Query))
			case resolvedAmbiguous:
				otel.RecordResolution(ctx, "ambiguous")
				return s.pendLocked(entry, spec, req, res.candidates,
					fmt.Sprintf("%d items match %q; confirm with a choice", len(res.candidates), req.Query))
			case resolvedUnique:
				otel.RecordResolution(ctx, "unique")
				target = res.item
			}
		}
		if spec.Destructive {
			req.Params = withParam(req.Params, "id", target.ID)
			return s.pendLocked(entry, spec, req, nil,
				fmt.Sprintf("%s %q is destructive; confirm to proceed", spec.Name, target.Title))
		}
	}
	return s.executeLocked(ctx, entry, spec, req, target)
}

// Confirm resolves a pending action: accept executes it (re-validating the
// target against current store state), reject cancels it. A token is valid
// exactly once; reuse fails with an invalid-token outcome.
func (s *Service) Confirm(ctx context.Context, token string, accept bool, choice int) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	pa, ok := s.pending[token]
	if !ok {
		return Outcome{Error: CodeInvalidToken, Message: "confirmation token is unknown, expired, or already used"}
	}
	delete(s.pending, token)

	if !accept {
		pa.entry.Status = StatusCanceled
		pa.entry.Reason = "rejected by caller"
		otel.RecordAction(ctx, pa.entry.Intent, string(StatusCanceled))
		return Outcome{ActionID: pa.entry.ActionID, Message: "action canceled"}
	}

	if pa.spec.Name == IntentDeleteDatabase {
		return s.confirmDeleteDatabaseLocked(ctx, pa, choice)
	}

	// Ambiguous action: the choice picks among the candidates offered with
	// the token. The chosen item is re-validated so state drift since
	// issuance degrades to a not-found failure, not a stale mutation.
	if pa.candidates != nil {
		if choice < 0 || choice >= len(pa.candidates) {
			return s.failLocked(ctx, pa.entry, CodeValidationFailed, "confirmation requires a valid choice_index")
		}
		chosen := pa.candidates[choice]
		it, ok := s.store.ItemByID(chosen.ID)
		if !ok || it.Archived || scoreTitle(it.Title, pa.req.Query) == tierNone {
			return s.failLocked(ctx, pa.entry, CodeNotFound, fmt.Sprintf("chosen item %q no longer matches", chosen.Title))
		}
		return s.executeLocked(ctx, pa.entry, pa.spec, pa.req, it)
	}

	// Destructive action with a unique target: re-resolve at execution time.
	// An archived target is as gone as a deleted one.
	if id := pa.req.Params["id"]; id != "" {
		it, ok := s.store.ItemByID(id)
		if !ok || it.Archived {
			return s.failLocked(ctx, pa.entry, CodeNotFound, "target no longer exists")
		}
		return s.executeLocked(ctx, pa.entry, pa.spec, pa.req, it)
	}
	res := s.resolve(pa.spec, pa.req.Query)
	switch res.kind {
	case resolvedNone:
		return s.failLocked(ctx, pa.entry, CodeNotFound, fmt.Sprintf("nothing matches %q anymore", pa.req.Query))
	case resolvedAmbiguous:
		return s.pendLocked(pa.entry, pa.spec, pa.req, res.candidates,
			fmt.Sprintf("%q became ambiguous; confirm again with a choice", pa.req.Query))
	}
	return s.executeLocked(ctx, pa.entry, pa.spec, pa.req, res.item)
}

// dispatchDeleteDatabaseLocked handles delete_database, whose target is a
// database resolved by name (or passed by id) rather than an item. Always
// destructive, so every path ends in a pending confirmation.
func (s *Service) dispatchDeleteDatabaseLocked(ctx context.Context, entry *AuditEntry, spec IntentSpec, req Request) Outcome {
	if id := req.Params["id"]; id != "" {
		db, ok := s.store.DatabaseByID(id)
		if !ok {
			return s.failLocked(ctx, entry, CodeNotFound, fmt.Sprintf("no database with id %s", id))
		}
		return s.pendLocked(entry, spec, req, nil,
			fmt.Sprintf("%s %q is destructive; confirm to proceed", spec.Name, db.Name))
	}
	res := resolveDatabaseName(s.store.Databases(), req.Query)
	switch res.kind {
	case resolvedNone:
		otel.RecordResolution(ctx, "not_found")
		return s.failLocked(ctx, entry, CodeNotFound, fmt.Sprintf("no database matches %q", req.Query))
	case resolvedAmbiguous:
		otel.RecordResolution(ctx, "ambiguous")
		return s.pendLocked(entry, spec, req, res.candidates,
			fmt.Sprintf("%d databases match %q; confirm with a choice", len(res.candidates), req.Query))
	}
	otel.RecordResolution(ctx, "unique")
	req.Params = withParam(req.Params, "id", res.db.ID)
	return s.pendLocked(entry, spec, req, nil,
		fmt.Sprintf("%s %q is destructive; confirm to proceed", spec.Name, res.db.Name))
}

// confirmDeleteDatabaseLocked re-validates a pending delete_database against
// current store state, mirroring the item confirm paths.
func (s *Service) confirmDeleteDatabaseLocked(ctx context.Context, pa *pendingAction, choice int) Outcome {
	if pa.candidates != nil {
		if choice < 0 || choice >= len(pa.candidates) {
			return s.failLocked(ctx, pa.entry, CodeValidationFailed, "confirmation requires a valid choice_index")
		}
		chosen := pa.candidates[choice]
		db, ok := s.store.DatabaseByID(chosen.ID)
		if !ok || scoreTitle(db.Name, pa.req.Query) == tierNone {
			return s.failLocked(ctx, pa.entry, CodeNotFound, fmt.Sprintf("chosen database %q no longer matches", chosen.Title))
		}
		pa.req.Params = withParam(pa.req.Params, "id", db.ID)
		return s.executeLocked(ctx, pa.entry, pa.spec, pa.req, workspace.Item{})
	}
	if _, ok := s.store.DatabaseByID(pa.req.Params["id"]); !ok {
		return s.failLocked(ctx, pa.entry, CodeNotFound, "target no longer exists")
	}
	return s.executeLocked(ctx, pa.entry, pa.spec, pa.req, workspace.Item{})
}

// resolve scores the free-text query against the intent's scope.
func (s *Service) resolve(spec IntentSpec, q string) resolution {
	var scope []workspace.Item
	if spec.TargetType != "" {
		scope = s.store.ItemsOfType(spec.TargetType, false)
	} else {
		scope = s.store.AllItems(false)
	}
	return resolveTitle(scope, q)
}

// --- Bookkeeping (callers hold s.mu) ---

func (s *Service) newEntryLocked(intent string) *AuditEntry {
	entry := &AuditEntry{
		ActionID:  uuid.NewString(),
		Intent:    intent,
		Status:    StatusPending,
		Timestamp: s.now().UTC(),
	}
	s.entries = append(s.entries, entry)
	return entry
}

func (s *Service) failLocked(ctx context.Context, entry *AuditEntry, code, msg string) Outcome {
	entry.Status = StatusFailed
	entry.Reason = msg
	otel.RecordAction(ctx, entry.Intent, string(StatusFailed))
	return Outcome{ActionID: entry.ActionID, Error: code, Message: msg}
}

func (s *Service) pendLocked(entry *AuditEntry, spec IntentSpec, req Request, candidates []Candidate, msg string) Outcome {
	token := newToken()
	s.pending[token] = &pendingAction{entry: entry, spec: spec, req: req, candidates: candidates}
	return Outcome{
		ActionID:             entry.ActionID,
		RequiresConfirmation: true,
		ConfirmationToken:    token,
		Message:              msg,
		Candidates:           candidates,
	}
}

// executeLocked captures the pre-mutation snapshot, applies the mutation
// through the store, and settles the audit entry.
func (s *Service) executeLocked(ctx context.Context, entry *AuditEntry, spec IntentSpec, req Request, target workspace.Item) Outcome {
	snap := &snapshot{ActionID: entry.ActionID}
	summary, msg, err := s.apply(ctx, spec, req, target, snap)
	if err != nil {
		code := CodeValidationFailed
		if errors.Is(err, store.ErrItemNotFound) || errors.Is(err, store.ErrDatabaseNotFound) || errors.Is(err, store.ErrParentNotFound) {
			code = CodeNotFound
		}
		if msg == "" {
			msg = err.Error()
		}
		return s.failLocked(ctx, entry, code, msg)
	}
	if len(snap.Items) > 0 || len(snap.Databases) > 0 {
		s.snapshots[entry.ActionID] = snap
		entry.SnapshotRef = entry.ActionID
	}
	entry.Status = StatusSuccess
	entry.TargetSummary = summary
	otel.RecordAction(ctx, entry.Intent, string(StatusSuccess))
	return Outcome{ActionID: entry.ActionID, Success: true, Message: msg}
}

// apply performs the intent's effect. The snapshot is filled before any
// store mutation; on error no snapshot is kept because no effect happened.
func (s *Service) apply(ctx context.Context, spec IntentSpec, req Request, target workspace.Item, snap *snapshot) (summary, msg string, err error) {
	switch spec.Name {
	case IntentCreateTask:
		title := req.Params["title"]
		it := workspace.Item{
			ID:          uuid.NewString(),
			Title:       title,
			Type:        workspace.ItemTypeTask,
			ParentID:    req.Params["parent_id"],
			ContainerID: req.Params["container_id"],
		}
		if status := req.Params["status"]; status != "" || it.ContainerID != "" {
			propID, value := s.statusAssignment(it, status)
			if propID != "" && value != "" {
				it.Properties = map[string]workspace.PropertyValue{
					propID: {Type: workspace.PropertyStatus, Status: value},
				}
			}
		}
		s.captureItem(snap, it.ID)
		if err := s.store.AddItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("task %q (%s)", title, it.ID), fmt.Sprintf("Created task %q", title), nil

	case IntentMoveTask:
		propID, value := s.statusAssignment(target, req.Params["to"])
		if propID == "" {
			return "", fmt.Sprintf("%q has no status property to move within", target.Title), ErrValidationFailed
		}
		s.captureItem(snap, target.ID)
		it := target.Clone()
		if it.Properties == nil {
			it.Properties = make(map[string]workspace.PropertyValue)
		}
		it.Properties[propID] = workspace.PropertyValue{Type: workspace.PropertyStatus, Status: value}
		if err := s.store.UpdateItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("task %q (%s)", target.Title, target.ID), fmt.Sprintf("Moved %q to %q", target.Title, value), nil

	case IntentCompleteTask:
		propID, value := s.statusAssignment(target, s.doneValue(target))
		if propID == "" {
			propID, value = "status", "done"
		}
		s.captureItem(snap, target.ID)
		it := target.Clone()
		if it.Properties == nil {
			it.Properties = make(map[string]workspace.PropertyValue)
		}
		it.Properties[propID] = workspace.PropertyValue{Type: workspace.PropertyStatus, Status: value}
		if err := s.store.UpdateItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("task %q (%s)", target.Title, target.ID), fmt.Sprintf("Completed %q", target.Title), nil

	case IntentRenameItem:
		s.captureItem(snap, target.ID)
		it := target.Clone()
		it.Title = req.Params["title"]
		if err := s.store.UpdateItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("item %q (%s)", target.Title, target.ID), fmt.Sprintf("Renamed %q to %q", target.Title, it.Title), nil

	case IntentSetProperty:
		propID, pv, perr := s.typedValue(target, req.Params["property"], req.Params["value"])
		if perr != nil {
			return "", perr.Error(), ErrValidationFailed
		}
		s.captureItem(snap, target.ID)
		it := target.Clone()
		if it.Properties == nil {
			it.Properties = make(map[string]workspace.PropertyValue)
		}
		it.Properties[propID] = pv
		if err := s.store.UpdateItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("item %q (%s)", target.Title, target.ID), fmt.Sprintf("Set %q on %q", req.Params["property"], target.Title), nil

	case IntentOpenItem:
		// Read-only: nothing to snapshot, nothing to roll back.
		return fmt.Sprintf("item %q (%s)", target.Title, target.ID), fmt.Sprintf("Opened %q", target.Title), nil

	case IntentFavoriteItem:
		fav := true
		if v := req.Params["favorite"]; v != "" {
			fav = v == "true"
		} else if target.Favorite {
			fav = false // bare favorite_item toggles
		}
		s.captureItem(snap, target.ID)
		it := target.Clone()
		it.Favorite = fav
		if err := s.store.UpdateItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		verb := "Favorited"
		if !fav {
			verb = "Unfavorited"
		}
		return fmt.Sprintf("item %q (%s)", target.Title, target.ID), fmt.Sprintf("%s %q", verb, target.Title), nil

	case IntentArchiveItem:
		s.captureItem(snap, target.ID)
		it := target.Clone()
		it.Archived = true
		if err := s.store.UpdateItem(ctx, it); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("item %q (%s)", target.Title, target.ID), fmt.Sprintf("Archived %q", target.Title), nil

	case IntentDeleteItem:
		// Children are detached by the delete, so they are snapshotted too.
		s.captureItem(snap, target.ID)
		for _, child := range s.store.ItemsWithParent(target.ID, true) {
			s.captureItem(snap, child.ID)
		}
		if err := s.store.DeleteItem(ctx, target.ID); err != nil {
			snap.Items = nil
			return "", "", err
		}
		return fmt.Sprintf("item %q (%s)", target.Title, target.ID), fmt.Sprintf("Deleted %q", target.Title), nil

	case IntentDeleteDatabase:
		// The delete removes the rows with the schema, so both are
		// snapshotted and rollback restores both.
		id := req.Params["id"]
		db, ok := s.store.DatabaseByID(id)
		if !ok {
			return "", "", store.ErrDatabaseNotFound
		}
		s.captureDatabase(snap, id)
		for _, row := range s.store.ItemsInContainer(id, true) {
			s.captureItem(snap, row.ID)
		}
		if err := s.store.DeleteDatabase(ctx, id); err != nil {
			snap.Items, snap.Databases = nil, nil
			return "", "", err
		}
		return fmt.Sprintf("database %q (%s)", db.Name, id), fmt.Sprintf("Deleted database %q", db.Name), nil
	}
	return "", fmt.Sprintf("intent %q has no executor", spec.Name), ErrValidationFailed
}

// rollbackLocked restores the most recent successful action with a live
// snapshot and invalidates that snapshot.
func (s *Service) rollbackLocked(ctx context.Context, entry *AuditEntry) Outcome {
	var target *AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Status == StatusSuccess && e.SnapshotRef != "" {
			if _, ok := s.snapshots[e.SnapshotRef]; ok {
				target = e
				break
			}
		}
	}
	if target == nil {
		return s.failLocked(ctx, entry, CodeNothingToRollback, "no action with a live snapshot to roll back")
	}

	// Databases are restored before items: a restored row's container must
	// exist for the row to be accepted.
	snap := s.snapshots[target.SnapshotRef]
	for _, ds := range snap.Databases {
		var err error
		switch {
		case ds.Prior == nil:
			if _, ok := s.store.DatabaseByID(ds.DatabaseID); ok {
				err = s.store.DeleteDatabase(ctx, ds.DatabaseID)
			}
		default:
			if _, ok := s.store.DatabaseByID(ds.DatabaseID); ok {
				err = s.store.UpdateDatabase(ctx, *ds.Prior)
			} else {
				err = s.store.AddDatabase(ctx, *ds.Prior)
			}
		}
		if err != nil {
			return s.failLocked(ctx, entry, CodeValidationFailed, fmt.Sprintf("restore database %s: %v", ds.DatabaseID, err))
		}
	}
	for _, is := range snap.Items {
		var err error
		switch {
		case is.Prior == nil:
			if _, ok := s.store.ItemByID(is.ItemID); ok {
				err = s.store.DeleteItem(ctx, is.ItemID)
			}
		default:
			if _, ok := s.store.ItemByID(is.ItemID); ok {
				err = s.store.UpdateItem(ctx, *is.Prior)
			} else {
				err = s.store.AddItem(ctx, *is.Prior)
			}
		}
		if err != nil {
			return s.failLocked(ctx, entry, CodeValidationFailed, fmt.Sprintf("restore item %s: %v", is.ItemID, err))
		}
	}

	delete(s.snapshots, target.SnapshotRef)
	target.Status = StatusRolledBack
	entry.Status = StatusSuccess
	entry.TargetSummary = fmt.Sprintf("%s (%s)", target.Intent, target.ActionID)
	entry.Reason = "rolled back " + target.TargetSummary
	otel.RecordAction(ctx, entry.Intent, string(StatusSuccess))
	return Outcome{
		ActionID: entry.ActionID,
		Success:  true,
		Message:  fmt.Sprintf("Rolled back %s: %s", target.Intent, target.TargetSummary),
	}
}

// --- Property helpers ---

// statusAssignment picks the status property and canonical column value for
// an item. Rows use their database's status property (matching the value
// against the declared options, case-insensitively); schema-less items fall
// back to a bare "status" property.
func (s *Service) statusAssignment(it workspace.Item, value string) (propID, canonical string) {
	if it.ContainerID != "" {
		if db, ok := s.store.DatabaseByID(it.ContainerID); ok {
			if spec, ok := db.StatusProperty(); ok {
				if value == "" && len(spec.Options) > 0 {
					// New rows land in the first column.
					return spec.ID, spec.Options[0]
				}
				for _, opt := range spec.Options {
					if strings.EqualFold(opt, value) {
						return spec.ID, opt
					}
				}
				return spec.ID, value
			}
		}
	}
	if value == "" {
		return "", ""
	}
	return "status", value
}

// doneValue returns the terminal column for a task: a "done"-named option
// when the schema declares one, the last declared option otherwise.
func (s *Service) doneValue(it workspace.Item) string {
	if it.ContainerID != "" {
		if db, ok := s.store.DatabaseByID(it.ContainerID); ok {
			if spec, ok := db.StatusProperty(); ok && len(spec.Options) > 0 {
				for _, opt := range spec.Options {
					if strings.EqualFold(opt, "done") {
						return opt
					}
				}
				return spec.Options[len(spec.Options)-1]
			}
		}
	}
	return "done"
}

// typedValue resolves the property operand (id first, display name as
// fallback) against the item's container schema and parses the raw value by
// the declared type. Schema-less items store the operand as a text property
// under the given key.
func (s *Service) typedValue(it workspace.Item, property, raw string) (string, workspace.PropertyValue, error) {
	var spec workspace.PropertySpec
	found := false
	if it.ContainerID != "" {
		if db, ok := s.store.DatabaseByID(it.ContainerID); ok {
			if ps, ok := db.Schema[property]; ok {
				spec, found = ps, true
			} else {
				for _, ps := range db.Schema {
					if strings.EqualFold(ps.DisplayName, property) {
						spec, found = ps, true
						break
					}
				}
			}
		}
	}
	if !found {
		return property, workspace.PropertyValue{Type: workspace.PropertyText, Text: raw}, nil
	}
	switch spec.Type {
	case workspace.PropertyNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", workspace.PropertyValue{}, fmt.Errorf("%q is not a number for %q", raw, spec.DisplayName)
		}
		return spec.ID, workspace.PropertyValue{Type: workspace.PropertyNumber, Number: n}, nil
	case workspace.PropertyDate:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return spec.ID, workspace.PropertyValue{Type: workspace.PropertyDate, Date: &t}, nil
			}
		}
		return "", workspace.PropertyValue{}, fmt.Errorf("%q is not a date for %q", raw, spec.DisplayName)
	case workspace.PropertyStatus:
		for _, opt := range spec.Options {
			if strings.EqualFold(opt, raw) {
				return spec.ID, workspace.PropertyValue{Type: workspace.PropertyStatus, Status: opt}, nil
			}
		}
		return spec.ID, workspace.PropertyValue{Type: workspace.PropertyStatus, Status: raw}, nil
	case workspace.PropertyRelation:
		ids := strings.Split(raw, ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		return spec.ID, workspace.PropertyValue{Type: workspace.PropertyRelation, Relations: ids}, nil
	case workspace.PropertyRollup, workspace.PropertyFormula:
		return "", workspace.PropertyValue{}, fmt.Errorf("%q is derived and cannot be set", spec.DisplayName)
	}
	return spec.ID, workspace.PropertyValue{Type: workspace.PropertyText, Text: raw}, nil
}

func withParam(params map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; uuid is a fine
		// stand-in if it somehow does.
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
