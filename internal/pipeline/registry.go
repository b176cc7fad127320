package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Info describes one registered pipeline for the modes listing API.
type Info struct {
	Mode  string   `json:"mode"`
	Steps []string `json:"steps"`
	Flat  bool     `json:"flat"`
}

// Registry holds the pipeline variants and resolves which one to run for a
// given task mode.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry creates an empty pipeline registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]*Pipeline)}
}

// Register adds a pipeline under its mode identifier.
func (r *Registry) Register(p *Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Mode()] = p
}

// Resolve returns the pipeline for the given mode.
func (r *Registry) Resolve(mode string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[mode]
	if !ok {
		return nil, fmt.Errorf("mode %q is not registered", mode)
	}
	return p, nil
}

// List returns information about all registered pipelines, sorted by mode
// for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.pipelines))
	for mode, p := range r.pipelines {
		steps := make([]string, len(p.Steps()))
		for i, s := range p.Steps() {
			steps[i] = s.Name()
		}
		infos = append(infos, Info{Mode: mode, Steps: steps, Flat: p.Flat()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Mode < infos[j].Mode })
	return infos
}
