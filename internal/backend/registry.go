package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// BackendInfo pairs a backend name with its configuration and status.
type BackendInfo struct {
	Name          string        `json:"name"`
	Configuration Configuration `json:"configuration"`
	Status        Status        `json:"status"`
	Calibration   Properties    `json:"calibration"`
	Parameters    Properties    `json:"parameters"`
}

// Describe collects the information reported for b.
func Describe(b Backend) BackendInfo {
	return BackendInfo{
		Name:          b.Name(),
		Configuration: b.Configuration(),
		Status:        b.Status(),
		Calibration:   b.Calibration(),
		Parameters:    b.Parameters(),
	}
}

// Filter selects backends by configuration in AvailableBackends.
type Filter func(Configuration) bool

// Local keeps backends whose Local flag equals local.
func Local(local bool) Filter {
	return func(c Configuration) bool { return c.Local == local }
}

// Simulator keeps backends whose Simulator flag equals simulator.
func Simulator(simulator bool) Filter {
	return func(c Configuration) bool { return c.Simulator == simulator }
}

// registration is one name in the registry. Aliases point at the canonical
// name they resolve to.
type registration struct {
	backend Backend
	aliasOf string
}

// Registry holds registered backends and resolves names, including
// deprecated aliases, to them.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	logger  *slog.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]registration),
		logger:  logger,
	}
}

// Register adds a backend under its canonical name, replacing any previous
// registration of that name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[b.Name()] = registration{backend: b}
}

// RegisterAlias makes alias resolve to the backend registered as target.
// Lookups through an alias log a deprecation warning.
func (r *Registry) RegisterAlias(alias, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[target]
	if !ok {
		return fmt.Errorf("alias %q: %w: %q", alias, ErrNotFound, target)
	}
	if reg.aliasOf != "" {
		target = reg.aliasOf
	}
	if existing, ok := r.entries[alias]; ok && existing.aliasOf == "" {
		return fmt.Errorf("alias %q shadows a registered backend", alias)
	}
	r.entries[alias] = registration{backend: reg.backend, aliasOf: target}
	return nil
}

// GetBackend returns the backend registered under name. Unknown names return
// an error wrapping ErrNotFound.
func (r *Registry) GetBackend(name string) (Backend, error) {
	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if reg.aliasOf != "" {
		r.logger.Warn("backend name is deprecated", "name", name, "use", reg.aliasOf)
	}
	return reg.backend, nil
}

// AvailableBackends returns the canonical names of the backends matching all
// filters, sorted by name.
func (r *Registry) AvailableBackends(filters ...Filter) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
next:
	for name, reg := range r.entries {
		if reg.aliasOf != "" {
			continue
		}
		cfg := reg.backend.Configuration()
		for _, keep := range filters {
			if !keep(cfg) {
				continue next
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns information about all canonical backends, sorted by name
// for a stable API response.
func (r *Registry) List(filters ...Filter) []BackendInfo {
	names := r.AvailableBackends(filters...)

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BackendInfo, 0, len(names))
	for _, name := range names {
		reg, ok := r.entries[name]
		if !ok {
			continue
		}
		infos = append(infos, Describe(reg.backend))
	}
	return infos
}
