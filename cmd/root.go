// Package cmd defines and implements the CLI commands of meteo-crawler.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/app"
	"github.com/JakeFAU/meteo-crawler/internal/config"
	"github.com/JakeFAU/meteo-crawler/internal/crawler"
	"github.com/JakeFAU/meteo-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the service container. Tests swap
// in their own through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Engine() *crawler.Engine
	Fs() afero.Fs
}

var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

type rootOptions struct {
	cfgFile   string
	verbosity int
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "meteo-crawler",
		Short: "Builds a static weather site from the national forecast pages.",
		Long: `meteo-crawler walks the zone tree of the weather site, from the
country down to departments, collects forecasts, maps and pictograms for
every zone and writes one page and one data script per zone.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(App); ok && a != nil {
				a.Close()
				_ = a.Logger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// build loads .env and the configuration, applies command line overrides and
// creates the service container.
func (o *rootOptions) build(cmd *cobra.Command) (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return nil, err
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logging.LevelForVerbosity(o.verbosity)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, nil
}

// applyFlags copies explicitly set subcommand flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	var err error
	if changed("workers") {
		cfg.Crawler.Workers, err = flags.GetInt("workers")
	}
	if err == nil && changed("test") {
		cfg.Crawler.TestMode, err = flags.GetBool("test")
	}
	if err == nil && changed("refresh-assets") {
		var refresh bool
		refresh, err = flags.GetBool("refresh-assets")
		cfg.Crawler.CacheAssets = !refresh
	}
	if err == nil && changed("old-prevs") {
		cfg.Crawler.CacheForecasts, err = flags.GetBool("old-prevs")
	}
	if err == nil && changed("port") {
		cfg.Server.Port, err = flags.GetInt("port")
	}
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	return cfg.Validate()
}

func resolveApp(ctx context.Context) (App, error) {
	a, ok := ctx.Value(appKey).(App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute runs the root command until it returns or the process is signaled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "meteo-crawler: %v\n", logging.Truncate(err.Error(), logging.MaxMessageLen))
		stop()
		os.Exit(1)
	}
}
