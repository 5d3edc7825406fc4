package agent

import (
	"sort"
	"strings"
	"time"

	"github.com/webanalyst/corius/internal/workspace"
)

// matchTier orders the scoring strategies. Each tier strictly outranks every
// lower one; recency only orders candidates within a tier.
type matchTier int

const (
	tierNone matchTier = iota
	tierTokenOverlap
	tierSubstring
	tierPrefix
	tierExact
)

// Candidate is one scored resolution candidate, surfaced to the caller when
// a resolution is ambiguous.
type Candidate struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// resolutionKind classifies a resolution result.
type resolutionKind int

const (
	resolvedNone resolutionKind = iota
	resolvedUnique
	resolvedAmbiguous
)

type resolution struct {
	kind       resolutionKind
	item       workspace.Item
	candidates []Candidate
}

// scoreTitle places a title in a tier for the given query. Matching is
// case-insensitive throughout.
func scoreTitle(title, q string) matchTier {
	t := strings.ToLower(strings.TrimSpace(title))
	query := strings.ToLower(strings.TrimSpace(q))
	if query == "" || t == "" {
		return tierNone
	}
	switch {
	case t == query:
		return tierExact
	case strings.HasPrefix(t, query):
		return tierPrefix
	case strings.Contains(t, query):
		return tierSubstring
	}
	titleTokens := strings.Fields(t)
	for _, qt := range strings.Fields(query) {
		for _, tt := range titleTokens {
			if tt == qt {
				return tierTokenOverlap
			}
		}
	}
	return tierNone
}

// resolveTitle scores every candidate and returns the unique winner, the
// tied set, or nothing. Two candidates tie when they land in the same tier:
// tiers strictly outrank each other, and within a tier recency orders the
// candidate list for the confirmation prompt but never silently picks a
// winner.
func resolveTitle(items []workspace.Item, q string) resolution {
	var best matchTier
	var top []workspace.Item
	for _, it := range items {
		tier := scoreTitle(it.Title, q)
		if tier == tierNone {
			continue
		}
		switch {
		case tier > best:
			best = tier
			top = top[:0]
			top = append(top, it)
		case tier == best:
			top = append(top, it)
		}
	}
	if len(top) == 0 {
		return resolution{kind: resolvedNone}
	}
	// Most recently updated first; id breaks exact timestamp ties.
	sort.Slice(top, func(i, j int) bool {
		if !top[i].UpdatedAt.Equal(top[j].UpdatedAt) {
			return top[i].UpdatedAt.After(top[j].UpdatedAt)
		}
		return top[i].ID < top[j].ID
	})
	if len(top) == 1 {
		return resolution{kind: resolvedUnique, item: top[0]}
	}
	candidates := make([]Candidate, len(top))
	for i, it := range top {
		candidates[i] = Candidate{ID: it.ID, Title: it.Title, UpdatedAt: it.UpdatedAt}
	}
	return resolution{kind: resolvedAmbiguous, candidates: candidates}
}

type dbResolution struct {
	kind       resolutionKind
	db         workspace.Database
	candidates []Candidate
}

// resolveDatabaseName scores databases by name with the same tiers and tie
// rules as item titles.
func resolveDatabaseName(dbs []workspace.Database, q string) dbResolution {
	var best matchTier
	var top []workspace.Database
	for _, d := range dbs {
		tier := scoreTitle(d.Name, q)
		if tier == tierNone {
			continue
		}
		switch {
		case tier > best:
			best = tier
			top = top[:0]
			top = append(top, d)
		case tier == best:
			top = append(top, d)
		}
	}
	if len(top) == 0 {
		return dbResolution{kind: resolvedNone}
	}
	sort.Slice(top, func(i, j int) bool {
		if !top[i].UpdatedAt.Equal(top[j].UpdatedAt) {
			return top[i].UpdatedAt.After(top[j].UpdatedAt)
		}
		return top[i].ID < top[j].ID
	})
	if len(top) == 1 {
		return dbResolution{kind: resolvedUnique, db: top[0]}
	}
	candidates := make([]Candidate, len(top))
	for i, d := range top {
		candidates[i] = Candidate{ID: d.ID, Title: d.Name, UpdatedAt: d.UpdatedAt}
	}
	return dbResolution{kind: resolvedAmbiguous, candidates: candidates}
}
