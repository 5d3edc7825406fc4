package query

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/webanalyst/corius/internal/workspace"
)

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func text(s string) workspace.PropertyValue {
	return workspace.PropertyValue{Type: workspace.PropertyText, Text: s}
}

func num(n float64) workspace.PropertyValue {
	return workspace.PropertyValue{Type: workspace.PropertyNumber, Number: n}
}

func status(s string) workspace.PropertyValue {
	return workspace.PropertyValue{Type: workspace.PropertyStatus, Status: s}
}

func date(s string) workspace.PropertyValue {
	return workspace.PropertyValue{Type: workspace.PropertyDate, Date: datePtr(s)}
}

func row(id string, props map[string]workspace.PropertyValue) workspace.Item {
	return workspace.Item{ID: id, Title: id, Type: workspace.ItemTypeRow, Properties: props}
}

func ids(items []workspace.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func taskSchema() map[string]workspace.PropertySpec {
	return map[string]workspace.PropertySpec{
		"st": {ID: "st", DisplayName: "Status", Type: workspace.PropertyStatus, Options: []string{"To Do", "Doing", "Done"}},
		"du": {ID: "du", DisplayName: "Due", Type: workspace.PropertyDate},
		"pr": {ID: "pr", DisplayName: "Priority", Type: workspace.PropertyNumber},
		"no": {ID: "no", DisplayName: "Notes", Type: workspace.PropertyText},
	}
}

func TestMatches_operators(t *testing.T) {
	t.Parallel()
	env := Env{Schema: taskSchema()}
	it := row("r1", map[string]workspace.PropertyValue{
		"st": status("Doing"),
		"du": date("2026-03-01"),
		"pr": num(2),
		"no": text("call the plumber"),
	})

	tests := []struct {
		name string
		f    workspace.Filter
		want bool
	}{
		{"equals status case-insensitive", workspace.Filter{PropertyID: "st", Op: workspace.OpEquals, Value: "doing"}, true},
		{"equals status miss", workspace.Filter{PropertyID: "st", Op: workspace.OpEquals, Value: "Done"}, false},
		{"equals number", workspace.Filter{PropertyID: "pr", Op: workspace.OpEquals, Value: "2"}, true},
		{"equals number malformed ref", workspace.Filter{PropertyID: "pr", Op: workspace.OpEquals, Value: "two"}, false},
		{"equals date", workspace.Filter{PropertyID: "du", Op: workspace.OpEquals, Value: "2026-03-01"}, true},
		{"contains case-insensitive", workspace.Filter{PropertyID: "no", Op: workspace.OpContains, Value: "PLUMBER"}, true},
		{"contains miss", workspace.Filter{PropertyID: "no", Op: workspace.OpContains, Value: "electrician"}, false},
		{"before", workspace.Filter{PropertyID: "du", Op: workspace.OpBefore, Value: "2026-04-01"}, true},
		{"before same day", workspace.Filter{PropertyID: "du", Op: workspace.OpBefore, Value: "2026-03-01"}, false},
		{"after", workspace.Filter{PropertyID: "du", Op: workspace.OpAfter, Value: "2026-02-01"}, true},
		{"after malformed ref", workspace.Filter{PropertyID: "du", Op: workspace.OpAfter, Value: "soon"}, false},
		{"one_of hit", workspace.Filter{PropertyID: "st", Op: workspace.OpOneOf, Values: []string{"To Do", "Doing"}}, true},
		{"one_of miss", workspace.Filter{PropertyID: "st", Op: workspace.OpOneOf, Values: []string{"Done"}}, false},
		{"is_not_empty", workspace.Filter{PropertyID: "no", Op: workspace.OpIsNotEmpty}, true},
		{"is_empty on set value", workspace.Filter{PropertyID: "no", Op: workspace.OpIsEmpty}, false},
		{"is_empty on absent property", workspace.Filter{PropertyID: "missing", Op: workspace.OpIsEmpty}, true},
		{"is_not_empty on absent property", workspace.Filter{PropertyID: "missing", Op: workspace.OpIsNotEmpty}, false},
		{"equals on absent property", workspace.Filter{PropertyID: "missing", Op: workspace.OpEquals, Value: "x"}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Matches(it, tt.f, env); got != tt.want {
				t.Fatalf("Matches(%+v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}

func TestMatches_emptyTextIsEmpty(t *testing.T) {
	t.Parallel()
	env := Env{Schema: taskSchema()}
	it := row("r1", map[string]workspace.PropertyValue{"no": text("")})
	if !Matches(it, workspace.Filter{PropertyID: "no", Op: workspace.OpIsEmpty}, env) {
		t.Fatal("empty text value should match is_empty")
	}
}

func TestResolve_idWinsOverName(t *testing.T) {
	t.Parallel()
	// A filter addressed by id must ignore any display name it also carries.
	env := Env{Schema: taskSchema()}
	it := row("r1", map[string]workspace.PropertyValue{
		"st": status("Done"),
		"no": text("unrelated"),
	})
	v, ok := Resolve(it, env, "st", "Notes")
	if !ok || v.Status != "Done" {
		t.Fatalf("Resolve by id = (%+v, %v), want status Done", v, ok)
	}
}

func TestResolve_nameFallback(t *testing.T) {
	t.Parallel()
	env := Env{Schema: taskSchema()}
	it := row("r1", map[string]workspace.PropertyValue{"st": status("Doing")})

	v, ok := Resolve(it, env, "", "status")
	if !ok || v.Status != "Doing" {
		t.Fatalf("Resolve by name = (%+v, %v), want status Doing", v, ok)
	}
	// Unknown id falls back to the name.
	v, ok = Resolve(it, env, "nope", "Status")
	if !ok || v.Status != "Doing" {
		t.Fatalf("Resolve unknown id with name fallback = (%+v, %v)", v, ok)
	}
	if _, ok := Resolve(it, env, "nope", "also nope"); ok {
		t.Fatal("Resolve of unknown id and name should report absent")
	}
}

func TestFilter_survivesDisplayNameRename(t *testing.T) {
	t.Parallel()
	it := row("r1", map[string]workspace.PropertyValue{"st": status("Doing")})
	f := workspace.Filter{PropertyID: "st", Op: workspace.OpEquals, Value: "Doing"}

	before := Env{Schema: taskSchema()}
	renamed := taskSchema()
	spec := renamed["st"]
	spec.DisplayName = "Stage"
	renamed["st"] = spec
	after := Env{Schema: renamed}

	if !Matches(it, f, before) || !Matches(it, f, after) {
		t.Fatal("id-addressed filter must be unaffected by a display-name rename")
	}
}

func TestResolve_implicitTimestamps(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 2, 7, 12, 30, 0, 0, time.UTC)
	it := workspace.Item{ID: "p1", Type: workspace.ItemTypePage, CreatedAt: created, UpdatedAt: updated}

	v, ok := Resolve(it, Env{}, PropCreatedAt, "")
	if !ok || v.Date == nil || !v.Date.Equal(created) {
		t.Fatalf("created_at = (%+v, %v)", v, ok)
	}
	v, ok = Resolve(it, Env{}, "", "updated at")
	if !ok || v.Date == nil || !v.Date.Equal(updated) {
		t.Fatalf("updated at by name = (%+v, %v)", v, ok)
	}
	// Implicit properties work with no schema at all.
	if !Matches(it, workspace.Filter{PropertyID: PropUpdatedAt, Op: workspace.OpAfter, Value: "2026-02-01"}, Env{}) {
		t.Fatal("updated_at after filter should match without a schema")
	}
}

func TestEvaluate_inputUntouched(t *testing.T) {
	t.Parallel()
	items := []workspace.Item{
		row("b", map[string]workspace.PropertyValue{"pr": num(1)}),
		row("a", map[string]workspace.PropertyValue{"pr": num(2)}),
	}
	_ = Evaluate(items, nil, []workspace.Sort{{PropertyID: "pr"}}, Env{Schema: taskSchema()})
	if items[0].ID != "b" || items[1].ID != "a" {
		t.Fatal("Evaluate reordered its input slice")
	}
}

func TestEvaluate_sortAbsentLastAndIDTiebreak(t *testing.T) {
	t.Parallel()
	env := Env{Schema: taskSchema()}
	items := []workspace.Item{
		row("d", nil), // no due date
		row("c", map[string]workspace.PropertyValue{"du": date("2026-01-10")}),
		row("b", map[string]workspace.PropertyValue{"du": date("2026-01-20")}),
		row("a", map[string]workspace.PropertyValue{"du": date("2026-01-10")}),
	}
	got := Evaluate(items, nil, []workspace.Sort{{PropertyID: "du"}}, env)
	want := []string{"a", "c", "b", "d"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("ascending date sort mismatch (-want +got):\n%s", diff)
	}

	// Descending flips the whole comparison, absent values included.
	got = Evaluate(items, nil, []workspace.Sort{{PropertyID: "du", Descending: true}}, env)
	want = []string{"d", "b", "a", "c"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("descending date sort mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_multiKeySort(t *testing.T) {
	t.Parallel()
	env := Env{Schema: taskSchema()}
	items := []workspace.Item{
		row("r1", map[string]workspace.PropertyValue{"st": status("Doing"), "pr": num(2)}),
		row("r2", map[string]workspace.PropertyValue{"st": status("Doing"), "pr": num(1)}),
		row("r3", map[string]workspace.PropertyValue{"st": status("Done"), "pr": num(3)}),
	}
	sorts := []workspace.Sort{{PropertyID: "st"}, {PropertyID: "pr", Descending: true}}
	got := Evaluate(items, nil, sorts, env)
	want := []string{"r1", "r2", "r3"} // "doing" < "done", then priority desc
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("multi-key sort mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_deterministic(t *testing.T) {
	t.Parallel()
	env := Env{Schema: taskSchema()}
	items := []workspace.Item{
		row("r3", map[string]workspace.PropertyValue{"st": status("Doing")}),
		row("r1", map[string]workspace.PropertyValue{"st": status("Doing")}),
		row("r2", map[string]workspace.PropertyValue{"st": status("Doing")}),
	}
	filters := []workspace.Filter{{PropertyID: "st", Op: workspace.OpEquals, Value: "Doing"}}
	first := ids(Evaluate(items, filters, nil, env))
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, ids(Evaluate(items, filters, nil, env))); diff != "" {
			t.Fatalf("run %d diverged (-first +now):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff([]string{"r1", "r2", "r3"}, first); diff != "" {
		t.Fatalf("no-sort order should be id ascending (-want +got):\n%s", diff)
	}
}

func TestRollup_aggregates(t *testing.T) {
	t.Parallel()
	targets := map[string]workspace.Item{
		"t1": row("t1", map[string]workspace.PropertyValue{"hrs": num(2)}),
		"t2": row("t2", map[string]workspace.PropertyValue{"hrs": num(5)}),
		"t3": row("t3", nil), // no hours recorded
	}
	lookup := func(id string) (workspace.Item, bool) {
		it, ok := targets[id]
		return it, ok
	}
	rel := workspace.PropertyValue{Type: workspace.PropertyRelation, Relations: []string{"t1", "t2", "t3", "gone"}}
	it := row("proj", map[string]workspace.PropertyValue{"rel": rel})

	tests := []struct {
		agg  string
		want float64
	}{
		{"count", 3}, // dangling relation excluded
		{"sum", 7},
		{"min", 2},
		{"max", 5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.agg, func(t *testing.T) {
			t.Parallel()
			schema := map[string]workspace.PropertySpec{
				"ru": {ID: "ru", DisplayName: "Hours", Type: workspace.PropertyRollup,
					Rollup: &workspace.RollupSpec{RelationPropertyID: "rel", TargetPropertyID: "hrs", Aggregate: tt.agg}},
			}
			v, ok := Resolve(it, Env{Schema: schema, Lookup: lookup}, "ru", "")
			if !ok || v.Type != workspace.PropertyNumber || v.Number != tt.want {
				t.Fatalf("rollup %s = (%+v, %v), want %v", tt.agg, v, ok, tt.want)
			}
		})
	}
}

func TestFormula_sumAndConcat(t *testing.T) {
	t.Parallel()
	it := row("r1", map[string]workspace.PropertyValue{
		"a": num(1.5),
		"b": num(2.5),
		"x": text("hello"),
		"y": text(""),
		"z": text("world"),
	})
	schema := map[string]workspace.PropertySpec{
		"fs": {ID: "fs", DisplayName: "Total", Type: workspace.PropertyFormula,
			Formula: &workspace.FormulaSpec{Operation: "sum", Operands: []string{"a", "b", "missing"}}},
		"fc": {ID: "fc", DisplayName: "Label", Type: workspace.PropertyFormula,
			Formula: &workspace.FormulaSpec{Operation: "concat", Operands: []string{"x", "y", "z"}}},
	}
	env := Env{Schema: schema}

	v, ok := Resolve(it, env, "fs", "")
	if !ok || v.Number != 4 {
		t.Fatalf("formula sum = (%+v, %v), want 4", v, ok)
	}
	v, ok = Resolve(it, env, "fc", "")
	if !ok || v.Text != "hello world" {
		t.Fatalf("formula concat = (%+v, %v), want %q", v, ok, "hello world")
	}
}

func TestDerived_filterAndSort(t *testing.T) {
	t.Parallel()
	schema := map[string]workspace.PropertySpec{
		"fs": {ID: "fs", DisplayName: "Total", Type: workspace.PropertyFormula,
			Formula: &workspace.FormulaSpec{Operation: "sum", Operands: []string{"a", "b"}}},
	}
	env := Env{Schema: schema}
	items := []workspace.Item{
		row("r1", map[string]workspace.PropertyValue{"a": num(3)}),
		row("r2", map[string]workspace.PropertyValue{"a": num(1), "b": num(1)}),
		row("r3", map[string]workspace.PropertyValue{"a": num(5)}),
	}

	got := Evaluate(items, nil, []workspace.Sort{{PropertyID: "fs", Descending: true}}, env)
	if diff := cmp.Diff([]string{"r3", "r1", "r2"}, ids(got)); diff != "" {
		t.Fatalf("sort on derived property mismatch (-want +got):\n%s", diff)
	}

	filtered := Evaluate(items, []workspace.Filter{{PropertyID: "fs", Op: workspace.OpEquals, Value: "2"}}, nil, env)
	if diff := cmp.Diff([]string{"r2"}, ids(filtered)); diff != "" {
		t.Fatalf("filter on derived property mismatch (-want +got):\n%s", diff)
	}
}

func TestOneOf_relationMembership(t *testing.T) {
	t.Parallel()
	it := row("r1", map[string]workspace.PropertyValue{
		"rel": {Type: workspace.PropertyRelation, Relations: []string{"a", "b"}},
	})
	env := Env{Schema: map[string]workspace.PropertySpec{
		"rel": {ID: "rel", DisplayName: "Links", Type: workspace.PropertyRelation},
	}}
	if !Matches(it, workspace.Filter{PropertyID: "rel", Op: workspace.OpOneOf, Values: []string{"b", "z"}}, env) {
		t.Fatal("one_of should match any relation member")
	}
	if Matches(it, workspace.Filter{PropertyID: "rel", Op: workspace.OpOneOf, Values: []string{"z"}}, env) {
		t.Fatal("one_of should not match when no relation member is listed")
	}
}
