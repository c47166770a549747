package model

import (
	"fmt"
	"sync"

	"github.com/installkit/installkit/pkg/setup"
)

// Registry holds the host models known to the installer.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]*Model
	order     []string
	fieldMaps map[string]map[string]string
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		models:    make(map[string]*Model),
		fieldMaps: make(map[string]map[string]string),
	}
}

// Register adds the struct type behind v, e.g. Register(&User{}).
// Registering a name twice replaces the earlier model.
func (r *Registry) Register(v interface{}) (*Model, error) {
	m, err := newModel(v)
	if err != nil {
		return nil, setup.NewConfigurationError("invalid model", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.Name]; !exists {
		r.order = append(r.order, m.Name)
	}
	r.models[m.Name] = m
	return m, nil
}

// MustRegister is like Register but panics on error. Intended for host
// startup code.
func (r *Registry) MustRegister(v ...interface{}) {
	for _, model := range v {
		if _, err := r.Register(model); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the model registered under name.
func (r *Registry) Resolve(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, setup.NewConfigurationError(fmt.Sprintf("model %q is not registered", name), nil)
	}
	return m, nil
}

// ResolveAll resolves every name, failing on the first unknown one.
func (r *Registry) ResolveAll(names []string) ([]*Model, error) {
	models := make([]*Model, 0, len(names))
	for _, name := range names {
		m, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// Models returns every registered model in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		models = append(models, r.models[name])
	}
	return models
}

// RegisterFieldMap declares an explicit role -> field name map for a model.
// It takes precedence over name heuristics during field detection.
func (r *Registry) RegisterFieldMap(modelName string, roles map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make(map[string]string, len(roles))
	for k, v := range roles {
		copied[k] = v
	}
	r.fieldMaps[modelName] = copied
}

// FieldMap returns the explicit role map registered for a model.
func (r *Registry) FieldMap(modelName string) (map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.fieldMaps[modelName]
	return m, ok
}
