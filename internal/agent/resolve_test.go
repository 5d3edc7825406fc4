package agent

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/webanalyst/corius/internal/workspace"
)

func TestScoreTitle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		title string
		q     string
		want  matchTier
	}{
		{"exact", "Buy milk", "buy milk", tierExact},
		{"exact trims whitespace", "Buy milk", "  Buy milk  ", tierExact},
		{"prefix", "Buy milk and eggs", "buy milk", tierPrefix},
		{"substring", "Don't forget to buy milk", "buy milk", tierSubstring},
		{"token overlap", "Milk the cows", "buy milk", tierTokenOverlap},
		{"no match", "Water the plants", "buy milk", tierNone},
		{"empty query", "Buy milk", "", tierNone},
		{"empty title", "", "buy milk", tierNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := scoreTitle(tt.title, tt.q); got != tt.want {
				t.Fatalf("scoreTitle(%q, %q) = %v, want %v", tt.title, tt.q, got, tt.want)
			}
		})
	}
}

func TestResolveTitle_exactOutranksLowerTiers(t *testing.T) {
	t.Parallel()
	items := []workspace.Item{
		{ID: "a", Title: "Report Draft"},
		{ID: "b", Title: "Report"},
		{ID: "c", Title: "Quarterly report review"},
	}
	res := resolveTitle(items, "report")
	if res.kind != resolvedUnique || res.item.ID != "b" {
		t.Fatalf("resolveTitle = %+v, want unique item b", res)
	}
}

func TestResolveTitle_sameTierIsAmbiguous(t *testing.T) {
	t.Parallel()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	items := []workspace.Item{
		{ID: "a", Title: "Report Draft", UpdatedAt: older},
		{ID: "b", Title: "Report Final", UpdatedAt: newer},
	}
	res := resolveTitle(items, "report")
	if res.kind != resolvedAmbiguous {
		t.Fatalf("resolveTitle kind = %v, want ambiguous", res.kind)
	}
	// Recency orders the candidate list but never silently picks a winner.
	got := []string{res.candidates[0].ID, res.candidates[1].ID}
	if diff := cmp.Diff([]string{"b", "a"}, got); diff != "" {
		t.Fatalf("candidate order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTitle_timestampTieBreaksByID(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []workspace.Item{
		{ID: "b", Title: "Notes", UpdatedAt: ts},
		{ID: "a", Title: "Notes", UpdatedAt: ts},
	}
	res := resolveTitle(items, "notes")
	if res.kind != resolvedAmbiguous || res.candidates[0].ID != "a" {
		t.Fatalf("resolveTitle = %+v, want candidates led by a", res)
	}
}

func TestResolveTitle_none(t *testing.T) {
	t.Parallel()
	items := []workspace.Item{{ID: "a", Title: "Water the plants"}}
	if res := resolveTitle(items, "buy milk"); res.kind != resolvedNone {
		t.Fatalf("resolveTitle kind = %v, want none", res.kind)
	}
}
