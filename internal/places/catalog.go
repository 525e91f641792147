package places

import "fmt"

// Catalog is the fixed set of places plus the table of external identifiers
// used to query like counts. It is safe for concurrent reads.
type Catalog struct {
	byID     map[string]Place
	external map[string]string
	list     []Place
}

// NewCatalog validates the places and builds a catalog.
// external maps a place id to its third-party venue id; entries for unknown
// places are rejected.
func NewCatalog(list []Place, external map[string]string) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[string]Place, len(list)),
		external: make(map[string]string, len(external)),
		list:     make([]Place, 0, len(list)),
	}

	for _, p := range list {
		if p.ID == "" {
			return nil, fmt.Errorf("place %q: empty id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("place %q: duplicate id %s", p.Name, p.ID)
		}
		cat, err := ParseCategory(string(p.Category))
		if err != nil {
			return nil, fmt.Errorf("place %q: %w", p.Name, err)
		}
		p.Category = cat

		c.byID[p.ID] = p
		c.list = append(c.list, p)
	}

	for placeID, extID := range external {
		if _, ok := c.byID[placeID]; !ok {
			return nil, fmt.Errorf("external id %s: %w %s", extID, ErrUnknownPlace, placeID)
		}
		if extID == "" {
			continue
		}
		c.external[placeID] = extID
	}

	return c, nil
}

// All returns a copy of every place in catalog order.
func (c *Catalog) All() []Place {
	out := make([]Place, len(c.list))
	copy(out, c.list)
	return out
}

// Visible returns the places matching f in catalog order.
func (c *Catalog) Visible(f Filter) []Place {
	out := make([]Place, 0, len(c.list))
	for _, p := range c.list {
		if f.Match(p.Category) {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the place with the given id.
func (c *Catalog) Get(id string) (Place, error) {
	p, ok := c.byID[id]
	if !ok {
		return Place{}, fmt.Errorf("%w: %s", ErrUnknownPlace, id)
	}
	return p, nil
}

// ExternalID returns the venue id for a place. Places without an entry
// yield false and must not be looked up remotely.
func (c *Catalog) ExternalID(placeID string) (string, bool) {
	id, ok := c.external[placeID]
	return id, ok
}

// Len returns the number of places.
func (c *Catalog) Len() int {
	return len(c.list)
}
