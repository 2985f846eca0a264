package transcription

import (
	"sort"
	"sync"

	"github.com/kbukum/scribe/errors"
)

// Registry maps provider ids to transcriber backends. It is a pure
// lookup table populated at process start; resolution of an unknown id
// is a job-level error, not a retryable one.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Transcriber
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Transcriber)}
}

// Register adds a backend under its own name. Registering the same name
// twice is a configuration mistake.
func (r *Registry) Register(t Transcriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.m[name]; exists {
		return errors.InvalidConfig("provider already registered: " + name)
	}
	r.m[name] = t
	return nil
}

// Resolve returns the backend registered under id.
func (r *Registry) Resolve(id string) (Transcriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.m[id]
	if !ok {
		return nil, errors.UnknownProvider(id)
	}
	return t, nil
}

// ResolveChain resolves the primary id followed by its fallbacks, in
// order. Any unknown id fails the whole resolution.
func (r *Registry) ResolveChain(primary string, fallbacks ...string) ([]Transcriber, error) {
	chain := make([]Transcriber, 0, 1+len(fallbacks))
	for _, id := range append([]string{primary}, fallbacks...) {
		t, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, t)
	}
	return chain, nil
}

// Names returns the registered provider ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
