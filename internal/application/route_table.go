package application

import (
	"fmt"
	"strings"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// RouteTable maps admin console paths to the section whose unread badge the
// page owns. It is built from configuration so new sections are data only.
type RouteTable struct {
	bySection map[domain.Section]string
	byPath    map[string]domain.Section
}

// NewRouteTable validates raw (path -> section name) and normalizes the paths.
func NewRouteTable(raw map[string]string) (*RouteTable, error) {
	t := &RouteTable{
		bySection: make(map[domain.Section]string, len(raw)),
		byPath:    make(map[string]domain.Section, len(raw)),
	}
	for path, name := range raw {
		section, err := domain.ParseSection(name)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", path, err)
		}
		p := normalizePath(path)
		if p == "" {
			return nil, fmt.Errorf("route for section %q has an empty path", name)
		}
		if other, dup := t.bySection[section]; dup && other != p {
			return nil, fmt.Errorf("section %q is owned by both %q and %q", section, other, p)
		}
		t.byPath[p] = section
		t.bySection[section] = p
	}
	return t, nil
}

// Lookup returns the section owned by path, if any.
func (t *RouteTable) Lookup(path string) (domain.Section, bool) {
	if t == nil {
		return "", false
	}
	s, ok := t.byPath[normalizePath(path)]
	return s, ok
}

// PathFor returns the owning path of section.
func (t *RouteTable) PathFor(section domain.Section) (string, bool) {
	if t == nil {
		return "", false
	}
	p, ok := t.bySection[section]
	return p, ok
}

// normalizePath drops query, fragment and trailing slashes.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
