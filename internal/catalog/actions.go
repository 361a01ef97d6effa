package catalog

// ActionKind discriminates filter actions emitted by the navigation layer.
type ActionKind string

const (
	KindCategory    ActionKind = "category"
	KindSubcategory ActionKind = "subcategory"
	KindTag         ActionKind = "tag"
	KindDifficulty  ActionKind = "difficulty"
	KindSearch      ActionKind = "search"
	KindQuick       ActionKind = "quickFilter"
	KindReset       ActionKind = "reset"
)

// EventFilterChange is the bus event carrying an Action.
const EventFilterChange = "filter:change"

// Action is a structured filter-change request. Navigation emits these on
// the event bus; the state manager is the only component that applies them.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Value  string     `json:"value"`
	Source string     `json:"source"`

	// ResetOthers clears subcategory/tags/quickFilter when a category is
	// selected. Category clicks set it; programmatic updates may not.
	ResetOthers bool `json:"resetOthers,omitempty"`

	// BasedOnNavigation scopes a quick filter to the active category
	// instead of the whole corpus. It decides the target container.
	BasedOnNavigation bool `json:"basedOnNavigation,omitempty"`

	// Category carries the active category for scoped quick filters.
	Category string `json:"category,omitempty"`
}
