package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/account"
	"github.com/installkit/installkit/pkg/appconfig"
	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/introspect"
	"github.com/installkit/installkit/pkg/mailer"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/requirements"
	"github.com/installkit/installkit/pkg/schema"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/status"
	"github.com/installkit/installkit/pkg/stores"
	"github.com/installkit/installkit/pkg/telemetry"
)

// Step names used for spans, metrics labels and journal entries.
const (
	StepCheckEnvironment = "check_environment"
	StepSaveConnection   = "save_connection"
	StepInstallSchema    = "install_schema"
	StepCreateAccount    = "create_account"
	StepSaveTransport    = "save_transport"
	StepSaveApp          = "save_app_config"
	StepStatus           = "status"
	StepHistory          = "history"
)

// Installer runs the installation steps of one definition.
type Installer struct {
	def      *config.Definition
	registry *model.Registry

	introspector *introspect.Introspector
	connector    *database.Connector
	connections  *database.ConfigStore
	envFile      *database.EnvFile
	checker      *requirements.Checker
	schema       *schema.Provisioner
	accounts     *account.Provisioner
	mailer       *mailer.Store
	app          *appconfig.Store
	marker       setup.MarkerStore
	oracle       *status.Oracle

	opener  database.Opener
	hasher  setup.PasswordHasher
	journal stores.Store
	tel     *telemetry.Telemetry
	logger  zerolog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithTelemetry instruments every step with tel.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(i *Installer) { i.tel = tel }
}

// WithJournal records mutating steps in j. The installer does not close it.
func WithJournal(j stores.Store) Option {
	return func(i *Installer) { i.journal = j }
}

// WithHasher replaces the bcrypt password hasher.
func WithHasher(h setup.PasswordHasher) Option {
	return func(i *Installer) { i.hasher = h }
}

// WithOpener replaces the connector used to open connections.
func WithOpener(o database.Opener) Option {
	return func(i *Installer) { i.opener = o }
}

// WithMarker replaces the file-backed completion marker.
func WithMarker(m setup.MarkerStore) Option {
	return func(i *Installer) { i.marker = m }
}

// New wires an installer for def over the host models in registry.
func New(def *config.Definition, registry *model.Registry, opts ...Option) (*Installer, error) {
	if def == nil {
		return nil, setup.NewConfigurationError("installer definition is required", nil)
	}
	if registry == nil {
		registry = model.NewRegistry()
	}

	connector, err := database.NewConnector(def.Database.Driver, def.Database.Charset)
	if err != nil {
		return nil, err
	}

	i := &Installer{
		def:       def,
		registry:  registry,
		connector: connector,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.tel == nil {
		i.tel = telemetry.NewNop()
	}
	if i.hasher == nil {
		i.hasher = account.NewBcryptHasher()
	}
	if i.opener == nil {
		i.opener = connector
	}
	if i.marker == nil {
		i.marker = appconfig.NewFileMarker(def.InstallMarkerPath)
	}

	logger := i.tel.Logger.NewComponentLogger("installer").Zerolog()
	i.logger = logger

	i.introspector = introspect.New(registry, logger)
	i.connections = database.NewConfigStore(def.Database.ConfigPath, connector, logger)
	i.envFile = database.NewEnvFile(def.Database.EnvFile)
	i.checker = requirements.NewChecker(def.Requirements, def.ProjectDir, logger)
	i.schema = schema.NewProvisioner(registry, logger)
	i.accounts = account.NewProvisioner(i.introspector, i.hasher, def.AdminUser.AdminRoles, logger)
	i.mailer = mailer.NewStore(i.introspector, def.Mail.ConfigPath, logger)
	i.app = appconfig.NewStore(def.AppConfig, i.marker, logger)

	adminRole := status.DefaultAdminRole
	if len(def.AdminUser.AdminRoles) > 0 {
		adminRole = def.AdminUser.AdminRoles[0]
	}
	i.oracle = status.New(status.Config{
		Connections:     i.connections,
		Opener:          i.opener,
		Introspector:    i.introspector,
		AccountEntity:   def.AdminUser.Entity,
		AdminRole:       adminRole,
		Marker:          i.marker,
		TransportRecord: i.mailer.RecordExists,
	}, logger)

	if len(def.AdminUser.Fields) > 0 {
		m, err := i.introspector.ResolveAccountModel(def.AdminUser.Entity)
		if err != nil {
			return nil, err
		}
		registry.RegisterFieldMap(m.Name, def.AdminUser.Fields)
	}

	if _, err := registry.ResolveAll(def.Entities); err != nil {
		logger.Warn().Err(err).Strs("entities", def.Entities).Msg("Declared entities are not all registered")
	}

	return i, nil
}

// Definition returns the definition the installer was built from.
func (i *Installer) Definition() *config.Definition {
	return i.def
}

// Installed reports whether the completion marker exists.
func (i *Installer) Installed() bool {
	return i.marker.Exists()
}

// run executes fn as an instrumented step. Panics become internal failures
// and journal failures are only logged.
func (i *Installer) run(ctx context.Context, step string, journaled bool, fn func(ctx context.Context) setup.Result) (res setup.Result) {
	sc := i.tel.StartStep(ctx, step)
	start := time.Now()
	log := sc.Logger.Zerolog()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Step panicked")
			res = setup.Failed(setup.NewInternalError(fmt.Sprintf("%s failed unexpectedly", step), fmt.Errorf("%v", r)))
		}

		elapsed := time.Since(start)
		sc.End(res)

		ev := log.Info()
		if !res.Success {
			ev = log.Warn()
		}
		ev.Str("outcome", string(res.Outcome)).
			Dur("duration", elapsed).
			Msg(res.Message)

		if journaled && i.journal != nil {
			entry := &stores.Entry{
				Step:       step,
				Outcome:    res.Outcome,
				Message:    res.Message,
				DurationMS: elapsed.Milliseconds(),
			}
			if err := i.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
				log.Warn().Err(err).Msg("Failed to journal step")
			}
		}
	}()

	return fn(sc.Ctx)
}

// connect reads and validates the stored connection config, then opens it.
func (i *Installer) connect(ctx context.Context) (*database.Conn, error) {
	cfg, err := i.connections.Read()
	if err != nil || !i.connections.Validate(cfg) {
		return nil, setup.NewPreconditionError("Database configuration not found. Complete Step 2 first.", nil)
	}
	return i.opener.Open(ctx, *cfg)
}
