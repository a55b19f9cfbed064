package executor

import (
	"slices"
	"sync"
)

// Registry maps language identifiers to adapters.
type Registry struct {
	mu    sync.RWMutex
	langs map[string]Language
}

// NewRegistry returns a registry holding langs.
func NewRegistry(langs ...Language) *Registry {
	r := &Registry{langs: make(map[string]Language)}
	for _, lang := range langs {
		r.Register(lang)
	}
	return r
}

// Register adds lang under lang.Name(), replacing any earlier adapter with
// the same name.
func (r *Registry) Register(lang Language) {
	r.mu.Lock()
	r.langs[lang.Name()] = lang
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Language, bool) {
	r.mu.RLock()
	lang, ok := r.langs[name]
	r.mu.RUnlock()
	return lang, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.langs))
	for name := range r.langs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
