package plugin

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

// Registry holds the plugins of one runtime, keyed by id.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds p. Nil plugins, ids without IDPrefix and duplicate ids are
// rejected; a rejected call leaves the registry unchanged.
func (r *Registry) Register(p Plugin) error {
	if isNil(p) {
		return errors.New(errors.CodeInvalidInput, "cannot register a nil plugin", nil)
	}
	id := p.ID()
	if !strings.HasPrefix(id, IDPrefix) || len(id) == len(IDPrefix) {
		return errors.Newf(errors.CodeInvalidInput, "plugin id %q must start with %q", id, IDPrefix).
			WithContext("plugin_id", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[id]; exists {
		registered := append([]string(nil), r.order...)
		sort.Strings(registered)
		return errors.Newf(errors.CodePluginCollision,
			"plugin %q is already registered (registered plugins: %s)", id, strings.Join(registered, ", ")).
			WithContext("plugin_id", id).
			WithContext("registered", registered)
	}
	r.plugins[id] = p
	r.order = append(r.order, id)
	return nil
}

// isNil also catches typed nil pointers such as (*textplugin.Plugin)(nil).
func isNil(p Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Plugin returns the plugin with id.
func (r *Registry) Plugin(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

// All returns every plugin in registration order.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
