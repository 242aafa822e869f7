package punishment

import "sync"

// Category classifies a punishment type ordinal into the action the server
// must take for it.
type Category int

// Category constants for the type registry.
const (
	CategoryKick Category = iota
	CategoryMute
	CategoryBan
)

// String ...
func (c Category) String() string {
	switch c {
	case CategoryKick:
		return "KICK"
	case CategoryMute:
		return "MUTE"
	case CategoryBan:
		return "BAN"
	}
	return "UNKNOWN"
}

// UnmarshalText ...
func (c *Category) UnmarshalText(text []byte) error {
	switch string(text) {
	case "MUTE", "MUTED":
		*c = CategoryMute
	case "KICK", "KICKED":
		*c = CategoryKick
	default:
		*c = CategoryBan
	}
	return nil
}

// MarshalText ...
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// TypeEntry is one row of the panel's punishment type catalog.
type TypeEntry struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
	IsBan   bool   `json:"isBan"`
	IsMute  bool   `json:"isMute"`
}

// TypeRegistry maps punishment type ordinals to categories. The built-in
// mapping (0 = kick, 1 = mute, everything above = ban) applies until the
// panel's type catalog replaces it. Constructed once by the composition
// root and passed to every component that classifies ordinals.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[int]Category
}

// NewTypeRegistry creates a registry with the built-in ordinal mapping.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: map[int]Category{
		0: CategoryKick,
		1: CategoryMute,
	}}
}

// CategoryOf returns the category for the given ordinal. Ordinals unknown
// to the catalog fall back to the ban family, matching the panel's own
// numbering where custom types extend the ban range.
func (r *TypeRegistry) CategoryOf(ordinal int) Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.types[ordinal]; ok {
		return c
	}
	return CategoryBan
}

// IsBan ...
func (r *TypeRegistry) IsBan(ordinal int) bool {
	return r.CategoryOf(ordinal) == CategoryBan
}

// IsMute ...
func (r *TypeRegistry) IsMute(ordinal int) bool {
	return r.CategoryOf(ordinal) == CategoryMute
}

// ApplyCatalog replaces the ordinal mapping wholesale with the entries of a
// freshly fetched type catalog.
func (r *TypeRegistry) ApplyCatalog(entries []TypeEntry) {
	types := make(map[int]Category, len(entries))
	for _, e := range entries {
		switch {
		case e.IsMute:
			types[e.Ordinal] = CategoryMute
		case e.IsBan:
			types[e.Ordinal] = CategoryBan
		default:
			types[e.Ordinal] = CategoryKick
		}
	}

	r.mu.Lock()
	r.types = types
	r.mu.Unlock()
}
