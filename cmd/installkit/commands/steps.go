package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/installkit/installkit/pkg/account"
	"github.com/installkit/installkit/pkg/installer"
	"github.com/installkit/installkit/pkg/mailer"
	"github.com/installkit/installkit/pkg/setup"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the environment requirements",
		Long: `Check the runtime version, registered SQL drivers, writable directories
and free disk space declared in the installer definition.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.CheckEnvironment(ctx)
			})
		},
	}
}

func newDatabaseCommand() *cobra.Command {
	var (
		req      installer.ConnectionRequest
		port     int
		password string
	)

	cmd := &cobra.Command{
		Use:   "database",
		Short: "Save the database connection",
		Long: `Test the connection credentials and, when the test succeeds, persist them.
DATABASE_URL in the project's .env file is updated when that file exists.`,
		Example: `  # Local MySQL with an empty password
  installkit database --host localhost --port 3306 --name app --user root --password ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Port = port
			if cmd.Flags().Changed("password") {
				req.Password = &password
			}
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.SaveConnection(ctx, req)
			})
		},
	}

	cmd.Flags().StringVar(&req.Host, "host", "localhost", "database host")
	cmd.Flags().IntVar(&port, "port", 3306, "database port")
	cmd.Flags().StringVar(&req.DBName, "name", "", "database name")
	cmd.Flags().StringVar(&req.User, "user", "", "database user")
	cmd.Flags().StringVar(&password, "password", "", "database password (may be empty, but must be given)")

	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create or extend the tables of every declared entity",
		Long: `Create missing tables and add missing columns for the entities listed in the
installer definition. Existing columns are never dropped or altered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.InstallSchema(ctx)
			})
		},
	}
}

func newAdminCommand() *cobra.Command {
	var data account.Data

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create the administrator account",
		Example: `  installkit admin --email admin@example.com --password 's3cret' --name "Site Admin"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.CreateAccount(ctx, data)
			})
		},
	}

	cmd.Flags().StringVar(&data.Identity, "email", "", "administrator email or login")
	cmd.Flags().StringVar(&data.Secret, "password", "", "administrator password")
	cmd.Flags().StringVar(&data.DisplayName, "name", "", "administrator display name")

	return cmd
}

func newMailCommand() *cobra.Command {
	var (
		settings mailer.Settings
		port     int
		target   string
	)

	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Configure outbound mail",
		Long: `Attach SMTP settings to the administrator account and write the mailer
record. Without --target the most recently created account is used.`,
		Example: `  # Configure SMTP
  installkit mail --host smtp.example.com --port 587 --user mailer --password secret

  # Skip mail configuration
  installkit mail --skip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				settings.Port = mailer.Port(port)
				return in.SaveTransport(ctx, settings, target)
			})
		},
	}

	cmd.Flags().BoolVar(&settings.Skip, "skip", false, "skip mail configuration")
	cmd.Flags().StringVar(&settings.Host, "host", "", "SMTP host")
	cmd.Flags().IntVar(&port, "port", mailer.DefaultPort, "SMTP port")
	cmd.Flags().StringVar(&settings.User, "user", "", "SMTP user")
	cmd.Flags().StringVar(&settings.Password, "password", "", "SMTP password")
	cmd.Flags().StringVar(&settings.Encryption, "encryption", mailer.DefaultEncryption, "SMTP encryption (tls, ssl, none)")
	cmd.Flags().StringVar(&settings.FromEmail, "from-email", "", "sender address")
	cmd.Flags().StringVar(&settings.FromName, "from-name", "", "sender name")
	cmd.Flags().StringVar(&target, "target", "", "identity of the account to configure")

	return cmd
}

func newAppCommand() *cobra.Command {
	var (
		baseURL  string
		basePath string
		params   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "app",
		Short: "Save application parameters and complete the installation",
		Example: `  installkit app --base-url https://example.com --base-path / --param app.name=Shop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]interface{}, len(params)+2)
			for k, v := range params {
				values[k] = v
			}
			if cmd.Flags().Changed("base-url") {
				values["base_url"] = baseURL
			}
			if cmd.Flags().Changed("base-path") {
				values["base_path"] = basePath
			}
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.SaveAppParameters(ctx, values)
			})
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "public base URL")
	cmd.Flags().StringVar(&basePath, "base-path", "", "base path under the host")
	cmd.Flags().StringToStringVar(&params, "param", nil, "custom parameter as name=value (repeatable)")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installation status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.Status(ctx)
			})
		},
	}
}

func newFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "Show the detected account model and field roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd.Context(), func(_ context.Context, in *installer.Installer) setup.Result {
				return in.AccountFields()
			})
		},
	}
}
