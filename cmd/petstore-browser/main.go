// Command petstore-browser runs the connectivity-aware pet browser core and
// serves its state over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/petstore-browser/internal/config"
	"github.com/Sternrassler/petstore-browser/internal/httpapi"
	"github.com/Sternrassler/petstore-browser/pkg/app"
	"github.com/Sternrassler/petstore-browser/pkg/cache"
	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/connectivity"
	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "petstore-browser",
		Short: "Browse Petstore pets by status with connectivity-aware fetching",
		Long: `petstore-browser lists pets from the Petstore catalog by status with
client-side pagination. It tracks catalog reachability and exposes the
browser state and intents over a local HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML)")

	root.AddCommand(&cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", args[0])
			return nil
		},
	})

	return root
}

// run wires the components and blocks until ctx is done.
func run(ctx context.Context, cfg config.Config) error {
	logger := logging.Setup(cfg.Logging())

	catalogCfg := cfg.Catalog()
	if cfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		mgr, err := cache.NewManager(rdb, cfg.CacheTTL)
		if err != nil {
			return fmt.Errorf("create cache: %w", err)
		}
		catalogCfg.Cache = mgr
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("Revalidation cache enabled")
	}

	client, err := catalog.New(catalogCfg)
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}

	prober, err := connectivity.NewHTTPProber(cfg.Probe())
	if err != nil {
		return fmt.Errorf("create probe: %w", err)
	}
	env := connectivity.NewInterfaceEnvironment(cfg.InterfacePollInterval)
	monitor, err := connectivity.NewMonitor(env, prober, cfg.Monitor())
	if err != nil {
		return fmt.Errorf("create connectivity monitor: %w", err)
	}

	appCfg := app.DefaultConfig()
	appCfg.SettleDelay = cfg.PageSettleDelay
	state, err := app.New(client, monitor, appCfg)
	if err != nil {
		return fmt.Errorf("create app state: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := state.Start(gctx); err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg.ListenAddr, state)
	if err := srv.Start(); err != nil {
		state.Stop()
		return fmt.Errorf("start http api: %w", err)
	}

	logger.Info().
		Str("version", version).
		Str("base_url", cfg.BaseURL).
		Str("probe", cfg.ProbeTarget()).
		Str("addr", srv.Addr()).
		Str("config", cfg.ConfigPath).
		Msg("petstore-browser started")

	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})
	g.Go(func() error {
		<-gctx.Done()
		state.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Shutdown finished with error")
		return err
	}

	logger.Info().Msg("petstore-browser stopped")
	return nil
}

func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis-url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}
