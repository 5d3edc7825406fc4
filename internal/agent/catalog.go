package agent

import "github.com/webanalyst/corius/internal/workspace"

// Intent names. These are the canonical operation names the voice command
// parser and the chat tool layer dispatch by.
const (
	IntentCreateTask     = "create_task"
	IntentMoveTask       = "move_task"
	IntentCompleteTask   = "complete_task"
	IntentRenameItem     = "rename_item"
	IntentSetProperty    = "set_property"
	IntentOpenItem       = "open_item"
	IntentFavoriteItem   = "favorite_item"
	IntentArchiveItem    = "archive_item"
	IntentDeleteItem     = "delete_item"
	IntentDeleteDatabase = "delete_database"
	IntentRollbackAction = "rollback_action"
)

// IntentSpec declares one catalog entry: whether the operation is
// destructive (always confirmed before executing) and whether its target is
// identified by free text rather than an id (and so needs resolution).
type IntentSpec struct {
	Name               string
	Destructive        bool
	RequiresResolution bool
	// TargetType narrows the resolution scope; empty means any item type.
	TargetType workspace.ItemType
	// Required names the parameters that must be present for the intent.
	Required []string
}

// Catalog is the full set of operations the service executes. Dispatching
// an intent outside this table fails validation.
var Catalog = map[string]IntentSpec{
	IntentCreateTask:     {Name: IntentCreateTask, Required: []string{"title"}},
	IntentMoveTask:       {Name: IntentMoveTask, RequiresResolution: true, TargetType: workspace.ItemTypeTask, Required: []string{"to"}},
	IntentCompleteTask:   {Name: IntentCompleteTask, RequiresResolution: true, TargetType: workspace.ItemTypeTask},
	IntentRenameItem:     {Name: IntentRenameItem, RequiresResolution: true, Required: []string{"title"}},
	IntentSetProperty:    {Name: IntentSetProperty, RequiresResolution: true, Required: []string{"property", "value"}},
	IntentOpenItem:       {Name: IntentOpenItem, RequiresResolution: true},
	IntentFavoriteItem:   {Name: IntentFavoriteItem, RequiresResolution: true},
	IntentArchiveItem:    {Name: IntentArchiveItem, Destructive: true, RequiresResolution: true},
	IntentDeleteItem:     {Name: IntentDeleteItem, Destructive: true, RequiresResolution: true},
	// Databases resolve by name, not through the item resolver, so the entry
	// leaves RequiresResolution unset and Dispatch branches on the intent.
	IntentDeleteDatabase: {Name: IntentDeleteDatabase, Destructive: true},
	IntentRollbackAction: {Name: IntentRollbackAction},
}
