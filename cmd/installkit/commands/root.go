package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/installkit/installkit/pkg/model"
)

var (
	// Global flags
	configPath string
	projectDir string
	verbose    bool
	jsonOutput bool

	registry *model.Registry
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Execute runs the root command against the host models in reg.
func Execute(ctx context.Context, info BuildInfo, reg *model.Registry) error {
	registry = reg
	rootCmd := newRootCommand(info)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "installkit",
		Short: "installkit - guided first-run installer",
		Long: `installkit brings an application from an unconfigured deployment to a
running installation.

Steps:
  - Environment check
  - Database connection configuration
  - Additive schema provisioning
  - Administrator account creation
  - Outbound mail configuration
  - Application parameters and completion marker`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "installer definition path (default <project-dir>/installer.yaml when present)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "p", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newDatabaseCommand())
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newAdminCommand())
	rootCmd.AddCommand(newMailCommand())
	rootCmd.AddCommand(newAppCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newFieldsCommand())

	return rootCmd
}
