package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/installer"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/stores"
	"github.com/installkit/installkit/pkg/telemetry"
)

// environment holds everything a command needs to run installer steps.
type environment struct {
	def       *config.Definition
	path      string
	tel       *telemetry.Telemetry
	journal   *stores.SQLiteStore
	installer *installer.Installer
}

// definitionPath resolves --config, falling back to installer.yaml in the
// project directory when it exists.
func definitionPath() string {
	if configPath != "" {
		return configPath
	}
	candidate := filepath.Join(projectDir, config.DefaultFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func loadDefinition() (*config.Definition, string, error) {
	path := definitionPath()
	def, err := config.Load(path, projectDir)
	if err != nil {
		return nil, "", err
	}
	if verbose {
		def.Telemetry.Logging.Level = "debug"
	}
	return def, path, nil
}

func openEnvironment(ctx context.Context) (*environment, error) {
	def, path, err := loadDefinition()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(def.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	journal, err := openJournal(ctx, def.JournalPath)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	in, err := newInstaller(def, tel, journal)
	if err != nil {
		_ = journal.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	log.Debug().
		Str("definition", path).
		Str("project_dir", def.ProjectDir).
		Str("driver", def.Database.Driver).
		Msg("Environment loaded")

	return &environment{def: def, path: path, tel: tel, journal: journal, installer: in}, nil
}

func newInstaller(def *config.Definition, tel *telemetry.Telemetry, journal stores.Store) (*installer.Installer, error) {
	return installer.New(def, registry,
		installer.WithTelemetry(tel),
		installer.WithJournal(journal),
	)
}

func openJournal(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	journal, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := journal.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := journal.Migrate(ctx); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return journal, nil
}

func (e *environment) Close(ctx context.Context) {
	if err := e.journal.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close journal")
	}
	if err := e.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// runStep opens the environment, runs fn and prints its result. A failed
// result becomes the command's error.
func runStep(ctx context.Context, fn func(ctx context.Context, in *installer.Installer) setup.Result) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	res := fn(ctx, env.installer)
	if err := printResult(res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	return nil
}

func printResult(res setup.Result) error {
	if jsonOutput {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	mark := "OK"
	if !res.Success {
		mark = "FAILED"
	}
	fmt.Printf("[%s] %s\n", mark, res.Message)
	if res.Field != "" {
		fmt.Printf("  field: %s\n", res.Field)
	}

	keys := make([]string, 0, len(res.Extra))
	for k := range res.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printValue(k, res.Extra[k])
	}
	return nil
}

func printValue(key string, v interface{}) {
	switch val := v.(type) {
	case string, bool, int, int64, float64, setup.Signal:
		fmt.Printf("  %s: %v\n", key, val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			fmt.Printf("  %s: %v\n", key, val)
			return
		}
		fmt.Printf("  %s: %s\n", key, data)
	}
}
