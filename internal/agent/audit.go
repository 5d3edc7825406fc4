package agent

import "time"

// Status is the lifecycle state of one dispatched action. An entry is
// created pending, transitions exactly once to a terminal status, and may
// transition once more only from success to rolled_back.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusRolledBack Status = "rolled_back"
)

// AuditEntry records one action's outcome. Immutable once terminal, except
// for the single success -> rolled_back transition.
type AuditEntry struct {
	ActionID      string    `json:"action_id"`
	Intent        string    `json:"intent"`
	Status        Status    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	TargetSummary string    `json:"target_summary,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	SnapshotRef   string    `json:"snapshot_ref,omitempty"`
}

// RecentEntries returns the most recent audit entries, newest first, capped
// at limit.
func (s *Service) RecentEntries(limit int) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]AuditEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.entries[i])
	}
	return out
}
