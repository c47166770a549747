package introspect

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
)

// Introspector discovers which fields of a host model play which role.
type Introspector struct {
	registry *model.Registry
	logger   zerolog.Logger
}

// New creates an introspector over the models of registry.
func New(registry *model.Registry, logger zerolog.Logger) *Introspector {
	return &Introspector{
		registry: registry,
		logger:   logger.With().Str("component", "introspector").Logger(),
	}
}

// DetectAccountType returns the first candidate implementing setup.Account,
// or nil when none does.
func (i *Introspector) DetectAccountType(candidates []*model.Model) *model.Model {
	for _, m := range candidates {
		if m != nil && m.IsAccount() {
			return m
		}
	}
	return nil
}

// ResolveAccountModel returns the named model, or auto-detects one among
// the registered models when name is empty.
func (i *Introspector) ResolveAccountModel(name string) (*model.Model, error) {
	if name != "" {
		return i.registry.Resolve(name)
	}

	m := i.DetectAccountType(i.registry.Models())
	if m == nil {
		return nil, setup.NewConfigurationError("no registered model implements the account capability", nil)
	}
	i.logger.Debug().Str("model", m.Name).Msg("Account model detected")
	return m, nil
}

// DetectFields builds the FieldMap of m. Explicitly registered mappings win;
// the remaining roles are matched by lower-cased field name against the
// alias table. The first field matching a role claims it, and a field fills
// at most one role. Nothing is cached.
func (i *Introspector) DetectFields(m *model.Model) FieldMap {
	fm := newFieldMap()
	claimed := make(map[string]bool)

	if explicit, ok := i.registry.FieldMap(m.Name); ok {
		for role, field := range explicit {
			r := Role(role)
			if !r.Valid() {
				i.logger.Warn().Str("model", m.Name).Str("role", role).Msg("Ignoring unknown role in field map")
				continue
			}
			if _, exists := m.Field(field); !exists {
				i.logger.Warn().Str("model", m.Name).Str("field", field).Msg("Ignoring unknown field in field map")
				continue
			}
			fm[r] = field
			claimed[field] = true
		}
	}

	for _, name := range m.FieldNames() {
		if claimed[name] {
			continue
		}
		if r, ok := matchRole(name, fm); ok {
			fm[r] = name
			claimed[name] = true
		}
	}

	return fm
}

// matchRole returns the first unfilled role whose aliases contain the
// lower-cased field name.
func matchRole(field string, fm FieldMap) (Role, bool) {
	lower := strings.ToLower(field)
	for _, r := range Roles {
		if fm[r] != "" {
			continue
		}
		for _, alias := range aliases[r] {
			if alias == lower {
				return r, true
			}
		}
	}
	return "", false
}

// Mutator assigns a value to one role of an instance.
type Mutator func(target reflect.Value, value interface{}) error

// MutatorTable maps roles to mutators. Roles without a mapped, settable
// field are absent.
type MutatorTable map[Role]Mutator

// Mutators builds the capability table for m under fm.
func (i *Introspector) Mutators(m *model.Model, fm FieldMap) MutatorTable {
	table := make(MutatorTable)
	for _, r := range Roles {
		name, ok := fm.Field(r)
		if !ok {
			continue
		}
		f, ok := m.Field(name)
		if !ok || !f.CanSet() {
			continue
		}
		table[r] = f.Set
	}
	return table
}

// Apply sets value through the mutator of r. It returns false without error
// when r has no capability.
func (t MutatorTable) Apply(target reflect.Value, r Role, value interface{}) (bool, error) {
	mut, ok := t[r]
	if !ok {
		return false, nil
	}
	if err := mut(target, value); err != nil {
		return false, fmt.Errorf("failed to set %s: %w", r, err)
	}
	return true, nil
}

// Has reports whether r has a mutation capability.
func (t MutatorTable) Has(r Role) bool {
	_, ok := t[r]
	return ok
}
