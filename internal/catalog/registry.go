package catalog

// The pseudo-category matching everything.
const CategoryAll = "all"

// Difficulty enum ids.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Registry is the single owner of the category-id to display-name to
// container-id mapping and of the difficulty label mapping. Navigation,
// the card renderer, and the detail-page lookup all consume the same
// instance so the three can never drift apart.
type Registry struct {
	displayNames map[string]string // category id -> localized display name
	categoryIDs  map[string]string // localized display name -> category id
	difficulties map[string]string // localized label -> difficulty id
	order        []string          // category ids in presentation order
}

// NewRegistry builds the registry for the known category set.
func NewRegistry() *Registry {
	r := &Registry{
		displayNames: make(map[string]string),
		categoryIDs:  make(map[string]string),
		difficulties: map[string]string{
			"入门": DifficultyBeginner,
			"初级": DifficultyBeginner,
			"中级": DifficultyIntermediate,
			"高级": DifficultyAdvanced,
		},
	}
	for _, c := range []struct{ id, name string }{
		{"tax", "税务筹划"},
		{"legal", "法律合规"},
		{"business", "商务服务"},
		{"visa", "签证服务"},
		{"life", "生活服务"},
	} {
		r.displayNames[c.id] = c.name
		r.categoryIDs[c.name] = c.id
		r.order = append(r.order, c.id)
	}
	return r
}

// DisplayName maps a category id to its localized display name.
// Unknown ids return "" so filtering degrades to no-match, not a crash.
func (r *Registry) DisplayName(categoryID string) string {
	return r.displayNames[categoryID]
}

// CategoryID maps a localized display name back to a category id.
func (r *Registry) CategoryID(displayName string) string {
	return r.categoryIDs[displayName]
}

// KnownCategory reports whether the id names a real category (not "all").
func (r *Registry) KnownCategory(categoryID string) bool {
	_, ok := r.displayNames[categoryID]
	return ok
}

// CategoryIDs returns category ids in presentation order.
func (r *Registry) CategoryIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ContainerID resolves the target card container for a category id.
// Every real category maps to "<id>-articles"; "all" and anything
// unknown fall back to the aggregate container.
func (r *Registry) ContainerID(categoryID string) string {
	if r.KnownCategory(categoryID) {
		return categoryID + "-articles"
	}
	return "all-articles"
}

// ContainerIDs returns every known container id, aggregate container first.
func (r *Registry) ContainerIDs() []string {
	out := []string{"all-articles"}
	for _, id := range r.order {
		out = append(out, id+"-articles")
	}
	return out
}

// DifficultyID maps a localized difficulty label to its enum id.
// Already-normalized ids pass through; unknown labels return "".
func (r *Registry) DifficultyID(label string) string {
	switch label {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return label
	}
	return r.difficulties[label]
}

// DifficultyLabel returns the canonical localized label for an enum id.
func (r *Registry) DifficultyLabel(id string) string {
	switch id {
	case DifficultyBeginner:
		return "入门"
	case DifficultyIntermediate:
		return "中级"
	case DifficultyAdvanced:
		return "高级"
	}
	return ""
}
