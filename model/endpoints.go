package model

import (
	"errors"
	"fmt"
)

// Endpoints maps the model references used by agent definitions to Model
// implementations. It is populated once at startup and read-only afterwards.
type Endpoints struct {
	models map[string]Model
	order  []string
}

// NewEndpoints creates an empty endpoint set.
func NewEndpoints() *Endpoints {
	return &Endpoints{models: make(map[string]Model)}
}

// Register adds m under name. Names must be unique and non-empty.
func (e *Endpoints) Register(name string, m Model) error {
	if name == "" {
		return errors.New("endpoint name must not be empty")
	}

	if m == nil {
		return fmt.Errorf("endpoint %q: nil model", name)
	}

	if _, dup := e.models[name]; dup {
		return fmt.Errorf("duplicate endpoint %q", name)
	}

	e.models[name] = m
	e.order = append(e.order, name)

	return nil
}

// MustRegister is like Register but panics on error.
func (e *Endpoints) MustRegister(name string, m Model) *Endpoints {
	if err := e.Register(name, m); err != nil {
		panic(err)
	}

	return e
}

// Get returns the endpoint registered under name. The empty name selects
// the first registered endpoint.
func (e *Endpoints) Get(name string) (Model, bool) {
	if name == "" {
		if len(e.order) == 0 {
			return nil, false
		}

		name = e.order[0]
	}

	m, ok := e.models[name]

	return m, ok
}

// Names returns the endpoint names in registration order.
func (e *Endpoints) Names() []string { return append([]string(nil), e.order...) }
