package status

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/introspect"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
)

// DefaultAdminRole is the role marker searched in the role-list column.
const DefaultAdminRole = "ROLE_ADMIN"

// Config wires the oracle to the stores it reads.
type Config struct {
	Connections   *database.ConfigStore
	Opener        database.Opener
	Introspector  *introspect.Introspector
	AccountEntity string
	AdminRole     string
	Marker        setup.MarkerStore

	// TransportRecord reports whether the mail side record exists. Optional.
	TransportRecord func() bool
}

// Oracle computes InstallationStatus on demand.
type Oracle struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates an oracle.
func New(cfg Config, logger zerolog.Logger) *Oracle {
	if cfg.AdminRole == "" {
		cfg.AdminRole = DefaultAdminRole
	}
	return &Oracle{
		cfg:    cfg,
		logger: logger.With().Str("component", "status").Logger(),
	}
}

// Status evaluates every signal in order. A false signal short-circuits the
// ones that depend on it.
func (o *Oracle) Status(ctx context.Context) setup.InstallationStatus {
	var st setup.InstallationStatus
	if o.cfg.TransportRecord != nil {
		st.TransportRecord = o.cfg.TransportRecord()
	}

	cc, err := o.cfg.Connections.Read()
	if err != nil {
		o.logger.Debug().Err(err).Msg("Connection config unreadable")
		return st
	}
	st.ConnectionConfigured = o.cfg.Connections.Validate(cc)
	if !st.ConnectionConfigured {
		return st
	}

	st.SchemaInstalled, st.AccountProvisioned = o.probeAccounts(ctx, *cc)
	st.TransportConfigured = st.AccountProvisioned
	st.AppConfigured = o.cfg.Marker != nil && o.cfg.Marker.Exists() &&
		st.ConnectionConfigured && st.SchemaInstalled && st.AccountProvisioned

	return st
}

// probeAccounts reports whether the account table is queryable and whether
// it holds an account carrying the admin role.
func (o *Oracle) probeAccounts(ctx context.Context, cc database.ConnectionConfig) (schemaInstalled, provisioned bool) {
	m, err := o.cfg.Introspector.ResolveAccountModel(o.cfg.AccountEntity)
	if err != nil {
		o.logger.Debug().Err(err).Msg("No account model resolvable")
		return false, false
	}

	conn, err := o.open(ctx, cc)
	if err != nil {
		o.logger.Debug().Err(err).Msg("Status probe could not connect")
		return false, false
	}
	defer conn.Close()

	var total int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", conn.Quote(m.Table))
	if err := conn.DB().GetContext(ctx, &total, query); err != nil {
		o.logger.Debug().Err(err).Str("table", m.Table).Msg("Account table not queryable")
		return false, false
	}

	admins, err := o.countAdmins(ctx, conn, m, total)
	if err != nil {
		o.logger.Debug().Err(err).Str("table", m.Table).Msg("Admin lookup failed")
		return true, false
	}
	return true, admins > 0
}

// open prefers an observing connection so a probe never creates the database.
func (o *Oracle) open(ctx context.Context, cc database.ConnectionConfig) (*database.Conn, error) {
	if obs, ok := o.cfg.Opener.(database.Observer); ok {
		return obs.Observe(ctx, cc)
	}
	return o.cfg.Opener.Open(ctx, cc)
}

// countAdmins counts rows whose role list contains the admin role. Models
// without a role list count every row.
func (o *Oracle) countAdmins(ctx context.Context, conn *database.Conn, m *model.Model, total int64) (int64, error) {
	fm := o.cfg.Introspector.DetectFields(m)
	column, ok := fm.Column(m, introspect.RoleRoleList)
	if !ok {
		return total, nil
	}

	var n int64
	query := conn.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE ?",
		conn.Quote(m.Table), conn.Quote(column)))
	if err := conn.DB().GetContext(ctx, &n, query, "%"+o.cfg.AdminRole+"%"); err != nil {
		return 0, err
	}
	return n, nil
}
