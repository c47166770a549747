package installer

import (
	"context"

	"github.com/installkit/installkit/pkg/account"
	"github.com/installkit/installkit/pkg/mailer"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/stores"
)

// CheckEnvironment runs the environment check list.
func (i *Installer) CheckEnvironment(ctx context.Context) setup.Result {
	return i.run(ctx, StepCheckEnvironment, false, func(ctx context.Context) setup.Result {
		report := i.checker.Check(ctx)
		return setup.Succeeded("System requirements checked").
			With("checks", report.Checks).
			With("all_passed", report.AllPassed).
			With("critical_failed", report.CriticalFailed).
			With("can_proceed", report.CanProceed)
	})
}

// SaveConnection validates the credentials, tests them against the store,
// persists them and mirrors DATABASE_URL into the env file when it exists.
// Nothing is written when the connection test fails.
func (i *Installer) SaveConnection(ctx context.Context, req ConnectionRequest) setup.Result {
	return i.run(ctx, StepSaveConnection, true, func(ctx context.Context) setup.Result {
		cfg, err := req.Config()
		if err != nil {
			return setup.Failed(err)
		}

		if res := i.connections.TestConnection(ctx, cfg); !res.Success {
			return res
		}

		if err := i.connections.Write(cfg); err != nil {
			return setup.Failed(err)
		}

		updated, err := i.envFile.UpdateDatabaseURL(i.connector.URL(cfg))
		if err != nil {
			i.logger.Warn().Err(err).Msg("Failed to update DATABASE_URL")
		}

		return setup.Succeeded("Database configuration saved successfully").
			With("env_updated", updated)
	})
}

// InstallSchema creates or extends the tables of every declared entity.
func (i *Installer) InstallSchema(ctx context.Context) setup.Result {
	return i.run(ctx, StepInstallSchema, true, func(ctx context.Context) setup.Result {
		conn, err := i.connect(ctx)
		if err != nil {
			return setup.Failed(err)
		}
		defer conn.Close()

		return i.schema.Install(ctx, conn, i.def.Entities)
	})
}

// CreateAccount provisions the privileged account.
func (i *Installer) CreateAccount(ctx context.Context, data account.Data) setup.Result {
	return i.run(ctx, StepCreateAccount, true, func(ctx context.Context) setup.Result {
		m, err := i.introspector.ResolveAccountModel(i.def.AdminUser.Entity)
		if err != nil {
			return setup.Failed(err)
		}

		conn, err := i.connect(ctx)
		if err != nil {
			return setup.Failed(err)
		}
		defer conn.Close()

		return i.accounts.Create(ctx, conn, m, i.introspector.DetectFields(m), data)
	})
}

// SaveTransport attaches outbound mail settings to the account identified by
// target, or to the most recent account when target is empty.
func (i *Installer) SaveTransport(ctx context.Context, settings mailer.Settings, target string) setup.Result {
	return i.run(ctx, StepSaveTransport, true, func(ctx context.Context) setup.Result {
		if settings.Skip {
			return i.mailer.Save(ctx, nil, nil, nil, settings, target)
		}

		m, err := i.introspector.ResolveAccountModel(i.def.AdminUser.Entity)
		if err != nil {
			return setup.Failed(err)
		}

		conn, err := i.connect(ctx)
		if err != nil {
			return setup.Failed(err)
		}
		defer conn.Close()

		return i.mailer.Save(ctx, conn, m, i.introspector.DetectFields(m), settings, target)
	})
}

// SaveAppParameters writes the application parameters and completes the
// installation.
func (i *Installer) SaveAppParameters(ctx context.Context, params map[string]interface{}) setup.Result {
	return i.run(ctx, StepSaveApp, true, func(ctx context.Context) setup.Result {
		return i.app.Save(params)
	})
}

// Status derives the installation status from live signals.
func (i *Installer) Status(ctx context.Context) setup.Result {
	return i.run(ctx, StepStatus, false, func(ctx context.Context) setup.Result {
		st := i.Snapshot(ctx)
		return setup.Succeeded("Installation status").
			With("status", st).
			With("completed", st.Completed()).
			With("next_step", st.NextStep())
	})
}

// Snapshot returns the raw status and publishes it to metrics.
func (i *Installer) Snapshot(ctx context.Context) setup.InstallationStatus {
	st := i.oracle.Status(ctx)
	i.tel.Metrics.RecordStatus(st)
	return st
}

// History lists journaled step attempts, newest first.
func (i *Installer) History(ctx context.Context, filter stores.Filter, limit, offset int) setup.Result {
	return i.run(ctx, StepHistory, false, func(ctx context.Context) setup.Result {
		if i.journal == nil {
			return setup.Succeeded("Journal disabled").With("entries", []*stores.Entry{})
		}
		entries, err := i.journal.List(ctx, filter, limit, offset)
		if err != nil {
			return setup.Failed(setup.NewInternalError("failed to read journal", err))
		}
		return setup.Succeeded("Installation history").With("entries", entries)
	})
}

// AccountFields reports the role mapping detected for the account model.
func (i *Installer) AccountFields() setup.Result {
	m, err := i.introspector.ResolveAccountModel(i.def.AdminUser.Entity)
	if err != nil {
		return setup.Failed(err)
	}
	return setup.Succeeded("Account model detected").
		With("model", m.Name).
		With("table", m.Table).
		With("fields", i.introspector.DetectFields(m))
}
