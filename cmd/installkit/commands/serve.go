package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/installkit/installkit/pkg/api"
	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/installer"
)

func newServeCommand() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the installer HTTP API",
		Long: `Serve the installer API under <route_prefix>/api together with /metrics.

With --watch the installer definition is reloaded when the file changes;
requests already in flight finish against the previous definition.`,
		Example: `  # Serve on the default address
  installkit serve

  # Serve on a custom address and reload installer.yaml on change
  installkit serve --addr 127.0.0.1:9000 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), addr, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the installer definition on change")

	return cmd
}

func serve(ctx context.Context, addr string, watch bool) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close(context.Background())

	holder := config.NewHolder(env.def)
	var current atomic.Pointer[installer.Installer]
	current.Store(env.installer)

	if watch && env.path != "" {
		watcher := config.NewWatcher(env.tel.Logger.Zerolog())
		err := watcher.Watch(ctx, env.path, projectDir, func(def *config.Definition) error {
			in, err := newInstaller(def, env.tel, env.journal)
			if err != nil {
				return err
			}
			holder.Store(def)
			current.Store(in)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to watch definition: %w", err)
		}
		defer watcher.Stop()
	}

	server := api.NewServer(env.def.RoutePrefix, current.Load, env.tel.Metrics.Handler(), env.tel.Logger.Zerolog())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("prefix", holder.Get().RoutePrefix).
			Msg("Installer API listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down installer API")
	return httpServer.Shutdown(shutdownCtx)
}
