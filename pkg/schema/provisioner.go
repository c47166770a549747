package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
)

// Provisioner applies additive-only schema for registered models.
type Provisioner struct {
	registry *model.Registry
	logger   zerolog.Logger
}

// NewProvisioner creates a schema provisioner.
func NewProvisioner(registry *model.Registry, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		registry: registry,
		logger:   logger.With().Str("component", "schema").Logger(),
	}
}

// Install creates missing tables, columns and unique indexes for the named
// models. It never drops or alters existing structures, so running it again
// is harmless. Every name is resolved before the database is touched.
func (p *Provisioner) Install(ctx context.Context, conn *database.Conn, names []string) setup.Result {
	if len(names) == 0 {
		return setup.Failed(setup.NewConfigurationError("no entities configured for installation", nil))
	}

	models, err := p.registry.ResolveAll(names)
	if err != nil {
		return setup.Failed(err)
	}

	created := 0
	for _, m := range models {
		added, err := p.apply(ctx, conn, m)
		if err != nil {
			p.logger.Error().Err(err).Str("model", m.Name).Msg("Schema apply failed")
			return setup.Failed(setup.NewInternalError(fmt.Sprintf("failed to install table for %s", m.Name), err))
		}
		if added {
			created++
		}
	}

	p.logger.Info().
		Int("entities", len(models)).
		Int("tables_created", created).
		Msg("Schema installed")

	return setup.Succeeded("Database tables created successfully").
		With("entities_installed", len(models))
}

// apply provisions one model and reports whether its table was created.
func (p *Provisioner) apply(ctx context.Context, conn *database.Conn, m *model.Model) (bool, error) {
	d := conn.Dialect()
	db := conn.DB()

	existing, err := d.Columns(ctx, db, m.Table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", m.Table, err)
	}

	created := false
	if len(existing) == 0 {
		if _, err := db.ExecContext(ctx, CreateTableSQL(d, m, conn.Charset())); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", m.Table, err)
		}
		created = true
	} else {
		have := make(map[string]bool, len(existing))
		for _, c := range existing {
			have[strings.ToLower(c)] = true
		}
		for _, f := range m.Fields {
			if have[strings.ToLower(f.Column)] || f.PrimaryKey {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
				d.Quote(m.Table), d.Quote(f.Column), d.ColumnDefinition(f))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return false, fmt.Errorf("failed to add column %s.%s: %w", m.Table, f.Column, err)
			}
			p.logger.Info().Str("table", m.Table).Str("column", f.Column).Msg("Column added")
		}
	}

	for _, f := range m.Fields {
		if !f.Unique || f.PrimaryKey {
			continue
		}
		if err := d.EnsureUniqueIndex(ctx, db, m.Table, f.Column); err != nil {
			return false, fmt.Errorf("failed to index %s.%s: %w", m.Table, f.Column, err)
		}
	}

	return created, nil
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement for m.
func CreateTableSQL(d database.Dialect, m *model.Model, charset string) string {
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		cols = append(cols, d.Quote(f.Column)+" "+d.ColumnDefinition(f))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)%s",
		d.Quote(m.Table), strings.Join(cols, ", "), d.TableOptions(charset))
}
