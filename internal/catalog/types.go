package catalog

// Popularity holds engagement metrics for an article.
type Popularity struct {
	Views    int     `json:"views"`
	Helpful  int     `json:"helpful"`
	Rating   float64 `json:"rating"`
	HotScore int     `json:"hotScore"`
}

// Article is a single knowledge-base entry (article or FAQ).
// Category holds the localized display name as published in the data file;
// Difficulty holds the localized label mapped to an enum id via the Registry.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content,omitempty"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Difficulty  string     `json:"difficulty"`
	Type        string     `json:"type"`
	Featured    bool       `json:"featured"`
	Date        string     `json:"date"`
	ReadingTime int        `json:"readingTime"`
	Views       int        `json:"views"`
	Popularity  Popularity `json:"popularity"`
	URL         string     `json:"url,omitempty"`
}

// Article types.
const (
	TypeArticle = "article"
	TypeFAQ     = "faq"
)

// Subcategory is a leaf node in the navigation tree.
type Subcategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Category is a top-level node in the navigation tree.
type Category struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Icon     string        `json:"icon"`
	Color    string        `json:"color"`
	Count    int           `json:"count"`
	Expanded bool          `json:"expanded"`
	Children []Subcategory `json:"children"`
}

// QuickFilterDef describes one quick-filter button.
type QuickFilterDef struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DifficultyDef describes one difficulty-filter button.
type DifficultyDef struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// NavigationData is the navigation section of the data file.
type NavigationData struct {
	Structure         []Category       `json:"structure"`
	QuickFilters      []QuickFilterDef `json:"quickFilters"`
	DifficultyFilters []DifficultyDef  `json:"difficultyFilters"`
}

// DataFile is the full on-disk shape of data/articles.json.
type DataFile struct {
	Version    string               `json:"version"`
	Updated    string               `json:"updated"`
	Navigation NavigationData       `json:"navigation"`
	Categories map[string][]Article `json:"categories"`
}
