// Package workspace defines the core data model: items (pages, tasks,
// database rows), databases with schemas and saved views, and the blocks
// that make up item content. Everything else in Corius moves these types
// around; this package has no dependencies of its own.
package workspace

import "time"

// ItemType distinguishes the three kinds of workspace items.
type ItemType string

const (
	ItemTypePage ItemType = "page"
	ItemTypeTask ItemType = "task"
	ItemTypeRow  ItemType = "database-row"
)

// PropertyType is the value type of a database property.
type PropertyType string

const (
	PropertyText     PropertyType = "text"
	PropertyNumber   PropertyType = "number"
	PropertyDate     PropertyType = "date"
	PropertyStatus   PropertyType = "status"
	PropertyRelation PropertyType = "relation"
	PropertyRollup   PropertyType = "rollup"
	PropertyFormula  PropertyType = "formula"
)

// ViewType is the rendering style of a saved view.
type ViewType string

const (
	ViewTable    ViewType = "table"
	ViewKanban   ViewType = "kanban"
	ViewList     ViewType = "list"
	ViewCalendar ViewType = "calendar"
	ViewGallery  ViewType = "gallery"
)

// PropertyValue is one typed value stored under a property id. Exactly one
// of the value fields is meaningful, selected by Type.
type PropertyValue struct {
	Type      PropertyType `json:"type"`
	Text      string       `json:"text,omitempty"`
	Number    float64      `json:"number,omitempty"`
	Date      *time.Time   `json:"date,omitempty"`
	Status    string       `json:"status,omitempty"`
	Relations []string     `json:"relations,omitempty"`
}

// IsEmpty reports whether the value carries no content for its type.
func (v PropertyValue) IsEmpty() bool {
	switch v.Type {
	case PropertyText:
		return v.Text == ""
	case PropertyNumber:
		return false
	case PropertyDate:
		return v.Date == nil
	case PropertyStatus:
		return v.Status == ""
	case PropertyRelation:
		return len(v.Relations) == 0
	}
	return v.Text == "" && v.Date == nil && v.Status == "" && len(v.Relations) == 0
}

// Clone returns a deep copy of the value.
func (v PropertyValue) Clone() PropertyValue {
	out := v
	if v.Date != nil {
		d := *v.Date
		out.Date = &d
	}
	if v.Relations != nil {
		out.Relations = append([]string(nil), v.Relations...)
	}
	return out
}

// BlockKind is the content type of a block.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockHeading BlockKind = "heading"
	BlockTodo    BlockKind = "todo"
	BlockEmbed   BlockKind = "embed"
)

// EmbedRef pins an embed block to a saved view and relation by stable ids,
// so renaming the view or the relation property never breaks the embed.
type EmbedRef struct {
	DatabaseID         string   `json:"database_id"`
	ViewID             string   `json:"view_id"`
	ViewType           ViewType `json:"view_type"`
	RelationPropertyID string   `json:"relation_property_id,omitempty"`
}

// Block is one ordered content unit owned by exactly one item.
type Block struct {
	ID    string    `json:"id"`
	Kind  BlockKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Done  bool      `json:"done,omitempty"`
	Embed *EmbedRef `json:"embed,omitempty"`
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	out := b
	if b.Embed != nil {
		e := *b.Embed
		out.Embed = &e
	}
	return out
}

// Item is a page, task, or database row; the atomic addressable unit.
//
// ParentID is a back-reference, not ownership: it forms a tree and must be
// acyclic. ContainerID references the Database owning this row, if any.
// UpdatedAt is bumped on every mutation and never moves backwards.
type Item struct {
	ID          string                   `json:"id"`
	Title       string                   `json:"title"`
	Type        ItemType                 `json:"type"`
	ParentID    string                   `json:"parent_id,omitempty"`
	ContainerID string                   `json:"container_id,omitempty"`
	Properties  map[string]PropertyValue `json:"properties,omitempty"`
	Blocks      []Block                  `json:"blocks,omitempty"`
	Favorite    bool                     `json:"favorite,omitempty"`
	Archived    bool                     `json:"archived,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.Properties != nil {
		out.Properties = make(map[string]PropertyValue, len(it.Properties))
		for k, v := range it.Properties {
			out.Properties[k] = v.Clone()
		}
	}
	if it.Blocks != nil {
		out.Blocks = make([]Block, len(it.Blocks))
		for i, b := range it.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	return out
}

// RollupSpec aggregates a property over the items a relation points at.
type RollupSpec struct {
	RelationPropertyID string `json:"relation_property_id"`
	TargetPropertyID   string `json:"target_property_id,omitempty"`
	Aggregate          string `json:"aggregate"` // count, sum, min, max
}

// FormulaSpec derives a value from sibling properties of the same item.
type FormulaSpec struct {
	Operation string   `json:"operation"` // sum, concat
	Operands  []string `json:"operands"`  // property ids
}

// PropertySpec describes one property in a database schema. DisplayName may
// change at any time; the property id never does.
type PropertySpec struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Type        PropertyType `json:"type"`
	Options     []string     `json:"options,omitempty"` // for status: allowed values in column order
	Rollup      *RollupSpec  `json:"rollup,omitempty"`
	Formula     *FormulaSpec `json:"formula,omitempty"`
}

// Clone returns a deep copy of the spec.
func (p PropertySpec) Clone() PropertySpec {
	out := p
	if p.Options != nil {
		out.Options = append([]string(nil), p.Options...)
	}
	if p.Rollup != nil {
		r := *p.Rollup
		out.Rollup = &r
	}
	if p.Formula != nil {
		f := *p.Formula
		f.Operands = append([]string(nil), p.Formula.Operands...)
		out.Formula = &f
	}
	return out
}

// FilterOp is a filter comparison operator.
type FilterOp string

const (
	OpEquals     FilterOp = "equals"
	OpContains   FilterOp = "contains"
	OpBefore     FilterOp = "before"
	OpAfter      FilterOp = "after"
	OpIsEmpty    FilterOp = "is_empty"
	OpIsNotEmpty FilterOp = "is_not_empty"
	OpOneOf      FilterOp = "one_of"
)

// Filter is one predicate over a property. PropertyID is authoritative;
// PropertyName is a display-name fallback used only when the id is absent
// or unknown.
type Filter struct {
	PropertyID   string   `json:"property_id,omitempty"`
	PropertyName string   `json:"property_name,omitempty"`
	Op           FilterOp `json:"op"`
	Value        string   `json:"value,omitempty"`
	Values       []string `json:"values,omitempty"` // for one_of
}

// Sort is one sort key. Ties across all keys break by item id ascending.
type Sort struct {
	PropertyID   string `json:"property_id,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
	Descending   bool   `json:"descending,omitempty"`
}

// View is a saved view over a database: a view type plus its filters and
// sorts. Kanban views group rows by GroupByPropertyID (a status property).
type View struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Type              ViewType `json:"type"`
	Filters           []Filter `json:"filters,omitempty"`
	Sorts             []Sort   `json:"sorts,omitempty"`
	GroupByPropertyID string   `json:"group_by_property_id,omitempty"`
}

// Clone returns a deep copy of the view.
func (v View) Clone() View {
	out := v
	if v.Filters != nil {
		out.Filters = make([]Filter, len(v.Filters))
		for i, f := range v.Filters {
			g := f
			g.Values = append([]string(nil), f.Values...)
			out.Filters[i] = g
		}
	}
	if v.Sorts != nil {
		out.Sorts = append([]Sort(nil), v.Sorts...)
	}
	return out
}

// Database is a typed, schema-bearing collection of items with saved views.
type Database struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Schema        map[string]PropertySpec `json:"schema,omitempty"`
	Views         []View                  `json:"views,omitempty"`
	DefaultViewID string                  `json:"default_view_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Clone returns a deep copy of the database.
func (d Database) Clone() Database {
	out := d
	if d.Schema != nil {
		out.Schema = make(map[string]PropertySpec, len(d.Schema))
		for k, v := range d.Schema {
			out.Schema[k] = v.Clone()
		}
	}
	if d.Views != nil {
		out.Views = make([]View, len(d.Views))
		for i, v := range d.Views {
			out.Views[i] = v.Clone()
		}
	}
	return out
}

// ViewByID returns the saved view with the given id, if present.
func (d Database) ViewByID(id string) (View, bool) {
	for _, v := range d.Views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}

// StatusProperty returns the first status-typed property in the schema,
// preferring the one a kanban default view groups by.
func (d Database) StatusProperty() (PropertySpec, bool) {
	if dv, ok := d.ViewByID(d.DefaultViewID); ok && dv.GroupByPropertyID != "" {
		if spec, ok := d.Schema[dv.GroupByPropertyID]; ok && spec.Type == PropertyStatus {
			return spec, true
		}
	}
	var best PropertySpec
	found := false
	for _, spec := range d.Schema {
		if spec.Type != PropertyStatus {
			continue
		}
		if !found || spec.ID < best.ID {
			best = spec
			found = true
		}
	}
	return best, found
}
