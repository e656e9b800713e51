// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package rubric

import (
	"fmt"
	"sync"
)

// Registry holds the named rubrics of a running engine. Rubrics are
// registered at campaign-import time and only read afterward.
type Registry struct {
	mu      sync.RWMutex
	rubrics map[string]*Rubric
}

// NewRegistry creates an empty rubric registry.
func NewRegistry() *Registry {
	return &Registry{rubrics: make(map[string]*Rubric)}
}

// Register adds a rubric under its name. Re-registering a name replaces the
// previous rubric (definition re-import).
func (reg *Registry) Register(r *Rubric) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.rubrics[r.Name()] = r
}

// Get returns the rubric registered under name.
func (reg *Registry) Get(name string) (*Rubric, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rubrics[name]
	if !ok {
		return nil, fmt.Errorf("rubric %q is not registered", name)
	}
	return r, nil
}

// Names returns the registered rubric names.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.rubrics))
	for name := range reg.rubrics {
		names = append(names, name)
	}
	return names
}
