package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/introspect"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
)

// DefaultRoles is assigned when no admin roles are configured.
var DefaultRoles = []string{"ROLE_ADMIN"}

// Data is the caller input for the privileged account.
type Data struct {
	Identity    string `json:"email"`
	Secret      string `json:"password"`
	DisplayName string `json:"fullName,omitempty"`
}

type assignment struct {
	role  introspect.Role
	value interface{}
}

// Provisioner creates the single privileged account.
type Provisioner struct {
	introspector *introspect.Introspector
	hasher       setup.PasswordHasher
	roles        []string
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewProvisioner creates an account provisioner assigning roles to the
// account it creates.
func NewProvisioner(in *introspect.Introspector, hasher setup.PasswordHasher, roles []string, logger zerolog.Logger) *Provisioner {
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	return &Provisioner{
		introspector: in,
		hasher:       hasher,
		roles:        roles,
		validate:     validator.New(),
		logger:       logger.With().Str("component", "account").Logger(),
	}
}

// Roles returns the roles assigned to created accounts.
func (p *Provisioner) Roles() []string {
	return p.roles
}

// Create inserts one account of model m. An existing account with the same
// identity, found up front or reported by the store's unique constraint,
// yields a conflict outcome without mutation.
func (p *Provisioner) Create(ctx context.Context, conn *database.Conn, m *model.Model, fm introspect.FieldMap, data Data) setup.Result {
	identityField, ok := fm.Field(introspect.RoleIdentity)
	if !ok {
		return setup.Failed(setup.NewConfigurationError(
			fmt.Sprintf("model %s has no identity field", m.Name), nil))
	}
	if _, ok := fm.Field(introspect.RoleSecret); !ok {
		return setup.Failed(setup.NewConfigurationError(
			fmt.Sprintf("model %s has no password field", m.Name), nil))
	}

	if err := p.validateData(identityField, data); err != nil {
		return setup.Failed(err)
	}

	identity := strings.ToLower(strings.TrimSpace(data.Identity))
	identityColumn, _ := fm.Column(m, introspect.RoleIdentity)

	exists, err := p.exists(ctx, conn, m, identityColumn, identity)
	if err != nil {
		return setup.Failed(setup.NewInternalError("failed to look up existing account", err))
	}
	if exists {
		p.logger.Info().Str("model", m.Name).Msg("Account already exists")
		return setup.Failed(setup.NewConflictError("Admin user with this email already exists", nil))
	}

	instance := m.New()
	mutators := p.introspector.Mutators(m, fm)

	hashed, err := p.hasher.Hash(data.Secret)
	if err != nil {
		return setup.Failed(setup.NewInternalError("failed to hash password", err))
	}

	values := []assignment{
		{introspect.RoleIdentity, identity},
		{introspect.RoleSecret, hashed},
		{introspect.RoleRoleList, p.roles},
		{introspect.RoleActiveFlag, true},
	}
	if name := strings.TrimSpace(data.DisplayName); name != "" {
		values = append(values, assignment{introspect.RoleDisplayName, name})
	}

	for _, v := range values {
		if _, err := mutators.Apply(instance, v.role, v.value); err != nil {
			return setup.Failed(setup.NewInternalError("failed to populate account", err))
		}
	}

	if err := insert(ctx, conn, m, instance); err != nil {
		if conn.Dialect().IsUniqueViolation(err) {
			p.logger.Info().Str("model", m.Name).Msg("Account created concurrently")
			return setup.Failed(setup.NewConflictError("Admin user already exists (unique constraint)", nil))
		}
		return setup.Failed(setup.NewInternalError("failed to create admin user", err))
	}

	p.logger.Info().Str("model", m.Name).Strs("roles", p.roles).Msg("Admin user created")
	return setup.Succeeded("Admin user created successfully")
}

func (p *Provisioner) validateData(identityField string, data Data) error {
	if strings.TrimSpace(data.Identity) == "" {
		return setup.NewValidationError("email", "Email is required")
	}
	if strings.Contains(strings.ToLower(identityField), "email") {
		if err := p.validate.Var(strings.TrimSpace(data.Identity), "email"); err != nil {
			return setup.NewValidationError("email", "Invalid email format")
		}
	}
	if data.Secret == "" {
		return setup.NewValidationError("password", "Password is required")
	}
	return nil
}

func (p *Provisioner) exists(ctx context.Context, conn *database.Conn, m *model.Model, column, identity string) (bool, error) {
	query := conn.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?",
		conn.Quote(m.Table), conn.Quote(column)))

	var count int
	if err := conn.DB().GetContext(ctx, &count, query, identity); err != nil {
		return false, err
	}
	return count > 0, nil
}
