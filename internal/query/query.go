// Package query is the stateless filter/sort evaluator shared by every
// caller: primary views, kanban boards, and embedded/linked views all go
// through Evaluate with identical semantics. The engine holds no state and
// performs no I/O; given the same (items, filters, sorts) it always returns
// the same ordered result.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/webanalyst/corius/internal/workspace"
)

// Implicit property ids resolvable on every item without a schema.
const (
	PropCreatedAt = "created_at"
	PropUpdatedAt = "updated_at"
)

// Env supplies the context an evaluation may need: the schema of the
// database being queried (nil for schema-less items) and an item lookup for
// rollups over relations.
type Env struct {
	Schema map[string]workspace.PropertySpec
	Lookup func(id string) (workspace.Item, bool)
}

// Evaluate applies filters then sorts and returns a new slice; the input is
// never modified. Ties across all sort keys break by item id ascending, so
// the order is total and repeatable.
func Evaluate(items []workspace.Item, filters []workspace.Filter, sorts []workspace.Sort, env Env) []workspace.Item {
	out := make([]workspace.Item, 0, len(items))
	for _, it := range items {
		if matchesAll(it, filters, env) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return less(out[i], out[j], sorts, env)
	})
	return out
}

func matchesAll(it workspace.Item, filters []workspace.Filter, env Env) bool {
	for _, f := range filters {
		if !Matches(it, f, env) {
			return false
		}
	}
	return true
}

// Matches evaluates one filter against one item. An unresolvable property is
// treated as empty, never as an error.
func Matches(it workspace.Item, f workspace.Filter, env Env) bool {
	v, ok := Resolve(it, env, f.PropertyID, f.PropertyName)
	switch f.Op {
	case workspace.OpIsEmpty:
		return !ok || v.IsEmpty()
	case workspace.OpIsNotEmpty:
		return ok && !v.IsEmpty()
	}
	if !ok {
		return false
	}
	switch f.Op {
	case workspace.OpEquals:
		return equals(v, f.Value)
	case workspace.OpContains:
		return strings.Contains(strings.ToLower(valueString(v)), strings.ToLower(f.Value))
	case workspace.OpBefore:
		ref, refOK := parseDate(f.Value)
		return refOK && v.Date != nil && v.Date.Before(ref)
	case workspace.OpAfter:
		ref, refOK := parseDate(f.Value)
		return refOK && v.Date != nil && v.Date.After(ref)
	case workspace.OpOneOf:
		return oneOf(v, f.Values)
	}
	return false
}

// Resolve finds a property value on an item. The operand resolves by
// property id first; the display name is a fallback used only when the id is
// absent or unknown, never the reverse. Derived properties (rollups,
// formulas, the implicit timestamps) flow through the same path as stored
// ones.
func Resolve(it workspace.Item, env Env, propertyID, propertyName string) (workspace.PropertyValue, bool) {
	if propertyID != "" {
		if v, ok := resolveByID(it, env, propertyID); ok {
			return v, true
		}
	}
	if propertyName != "" {
		if v, ok := resolveByName(it, env, propertyName); ok {
			return v, true
		}
	}
	return workspace.PropertyValue{}, false
}

func resolveByID(it workspace.Item, env Env, id string) (workspace.PropertyValue, bool) {
	switch id {
	case PropCreatedAt:
		d := it.CreatedAt
		return workspace.PropertyValue{Type: workspace.PropertyDate, Date: &d}, true
	case PropUpdatedAt:
		d := it.UpdatedAt
		return workspace.PropertyValue{Type: workspace.PropertyDate, Date: &d}, true
	}
	if spec, ok := env.Schema[id]; ok {
		if derived, ok := computeDerived(it, env, spec); ok {
			return derived, true
		}
	}
	v, ok := it.Properties[id]
	return v, ok
}

func resolveByName(it workspace.Item, env Env, name string) (workspace.PropertyValue, bool) {
	lower := strings.ToLower(name)
	switch lower {
	case "created", "created at":
		return resolveByID(it, env, PropCreatedAt)
	case "updated", "updated at":
		return resolveByID(it, env, PropUpdatedAt)
	}
	for id, spec := range env.Schema {
		if strings.ToLower(spec.DisplayName) == lower {
			return resolveByID(it, env, id)
		}
	}
	return workspace.PropertyValue{}, false
}

// computeDerived evaluates rollup and formula properties lazily. Operands of
// a formula resolve against stored values only, so derived properties cannot
// recurse into each other.
func computeDerived(it workspace.Item, env Env, spec workspace.PropertySpec) (workspace.PropertyValue, bool) {
	switch {
	case spec.Type == workspace.PropertyRollup && spec.Rollup != nil:
		return computeRollup(it, env, *spec.Rollup), true
	case spec.Type == workspace.PropertyFormula && spec.Formula != nil:
		return computeFormula(it, *spec.Formula), true
	}
	return workspace.PropertyValue{}, false
}

func computeRollup(it workspace.Item, env Env, r workspace.RollupSpec) workspace.PropertyValue {
	rel := it.Properties[r.RelationPropertyID]
	var targets []workspace.Item
	if env.Lookup != nil {
		for _, id := range rel.Relations {
			if target, ok := env.Lookup(id); ok {
				targets = append(targets, target)
			}
		}
	}
	if r.Aggregate == "count" {
		return workspace.PropertyValue{Type: workspace.PropertyNumber, Number: float64(len(targets))}
	}
	var nums []float64
	for _, target := range targets {
		if tv, ok := target.Properties[r.TargetPropertyID]; ok && tv.Type == workspace.PropertyNumber {
			nums = append(nums, tv.Number)
		}
	}
	out := workspace.PropertyValue{Type: workspace.PropertyNumber}
	if len(nums) == 0 {
		return out
	}
	switch r.Aggregate {
	case "sum":
		for _, n := range nums {
			out.Number += n
		}
	case "min":
		out.Number = nums[0]
		for _, n := range nums[1:] {
			if n < out.Number {
				out.Number = n
			}
		}
	case "max":
		out.Number = nums[0]
		for _, n := range nums[1:] {
			if n > out.Number {
				out.Number = n
			}
		}
	}
	return out
}

func computeFormula(it workspace.Item, f workspace.FormulaSpec) workspace.PropertyValue {
	switch f.Operation {
	case "sum":
		out := workspace.PropertyValue{Type: workspace.PropertyNumber}
		for _, id := range f.Operands {
			if v, ok := it.Properties[id]; ok && v.Type == workspace.PropertyNumber {
				out.Number += v.Number
			}
		}
		return out
	case "concat":
		var parts []string
		for _, id := range f.Operands {
			if v, ok := it.Properties[id]; ok && !v.IsEmpty() {
				parts = append(parts, valueString(v))
			}
		}
		return workspace.PropertyValue{Type: workspace.PropertyText, Text: strings.Join(parts, " ")}
	}
	return workspace.PropertyValue{}
}

// --- Operator helpers ---

func equals(v workspace.PropertyValue, ref string) bool {
	switch v.Type {
	case workspace.PropertyNumber:
		n, err := strconv.ParseFloat(ref, 64)
		return err == nil && v.Number == n
	case workspace.PropertyDate:
		d, ok := parseDate(ref)
		return ok && v.Date != nil && v.Date.Equal(d)
	case workspace.PropertyRelation:
		return len(v.Relations) == 1 && v.Relations[0] == ref
	}
	return strings.EqualFold(valueString(v), ref)
}

func oneOf(v workspace.PropertyValue, refs []string) bool {
	if v.Type == workspace.PropertyRelation {
		for _, id := range v.Relations {
			for _, ref := range refs {
				if id == ref {
					return true
				}
			}
		}
		return false
	}
	s := valueString(v)
	for _, ref := range refs {
		if strings.EqualFold(s, ref) {
			return true
		}
	}
	return false
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func valueString(v workspace.PropertyValue) string {
	switch v.Type {
	case workspace.PropertyNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case workspace.PropertyDate:
		if v.Date == nil {
			return ""
		}
		return v.Date.UTC().Format(time.RFC3339Nano)
	case workspace.PropertyStatus:
		return v.Status
	case workspace.PropertyRelation:
		return strings.Join(v.Relations, ",")
	}
	return v.Text
}

// --- Sorting ---

func less(a, b workspace.Item, sorts []workspace.Sort, env Env) bool {
	for _, s := range sorts {
		av, aok := Resolve(a, env, s.PropertyID, s.PropertyName)
		bv, bok := Resolve(b, env, s.PropertyID, s.PropertyName)
		c := compare(av, aok, bv, bok)
		if c == 0 {
			continue
		}
		if s.Descending {
			return c > 0
		}
		return c < 0
	}
	return a.ID < b.ID
}

// compare orders two property values. Absent or empty values sort after
// present ones in ascending order; both-absent compares equal so the id
// tiebreak decides.
func compare(a workspace.PropertyValue, aok bool, b workspace.PropertyValue, bok bool) int {
	aEmpty := !aok || a.IsEmpty()
	bEmpty := !bok || b.IsEmpty()
	switch {
	case aEmpty && bEmpty:
		return 0
	case aEmpty:
		return 1
	case bEmpty:
		return -1
	}
	if a.Type == workspace.PropertyNumber && b.Type == workspace.PropertyNumber {
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		}
		return 0
	}
	if a.Type == workspace.PropertyDate && b.Type == workspace.PropertyDate {
		switch {
		case a.Date.Before(*b.Date):
			return -1
		case a.Date.After(*b.Date):
			return 1
		}
		return 0
	}
	as, bs := strings.ToLower(valueString(a)), strings.ToLower(valueString(b))
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
