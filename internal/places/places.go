// Package places holds the immutable point-of-interest catalog of the town.
package places

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCategory is returned when a category or filter name is not recognised.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUnknownPlace is returned when a place id is not in the catalog.
	ErrUnknownPlace = errors.New("unknown place")
)

// Category of a place.
type Category string

// Known categories.
const (
	Bar        Category = "bar"
	Cinema     Category = "cinema"
	Restaurant Category = "restaurant"
)

// Categories lists every place category in display order.
var Categories = []Category{Bar, Cinema, Restaurant}

// ParseCategory accepts singular and plural forms ("bar", "bars").
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if s == string(c) || s == string(c)+"s" {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Filter selects which categories are visible on the map.
type Filter string

// FilterAll shows every category.
const FilterAll Filter = "all"

// ParseFilter parses "all" or a category name.
func ParseFilter(s string) (Filter, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(FilterAll)) {
		return FilterAll, nil
	}

	c, err := ParseCategory(s)
	if err != nil {
		return "", err
	}

	return Filter(c), nil
}

// Match reports whether a place of category c is visible under f.
func (f Filter) Match(c Category) bool {
	return f == FilterAll || f == Filter(c)
}

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// Place is a point of interest. Values are never mutated after the catalog is built.
type Place struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Category Category `yaml:"category" json:"category"`
	Address  string   `yaml:"address" json:"address"`
	Position Position `yaml:"position" json:"position"`
}
