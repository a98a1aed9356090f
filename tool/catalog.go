package tool

import (
	"fmt"
	"sort"
)

// Catalog is the process wide, read-only set of tools agents can be
// configured with, keyed by name.
type Catalog struct {
	tools map[string]Tool
}

// NewCatalog builds a catalog. Duplicate or empty names are rejected.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{tools: make(map[string]Tool, len(tools))}

	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return nil, fmt.Errorf("tool catalog: tool without name")
		}

		if _, dup := c.tools[t.Name()]; dup {
			return nil, fmt.Errorf("tool catalog: duplicate tool %q", t.Name())
		}

		c.tools[t.Name()] = t
	}

	return c, nil
}

// Get returns the tool with the given name.
func (c *Catalog) Get(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Lookup resolves a list of names, failing on the first unknown one.
func (c *Catalog) Lookup(names ...string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))

	for _, n := range names {
		t, ok := c.tools[n]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}

		out = append(out, t)
	}

	return out, nil
}

// Names returns the sorted tool names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for n := range c.tools {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
