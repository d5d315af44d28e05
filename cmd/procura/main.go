package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"procura/internal/catalog"
	"procura/internal/computesim"
	"procura/internal/config"
	"procura/internal/correlation"
	"procura/internal/gateway"
	"procura/internal/notify"
	"procura/internal/pipeline"
	"procura/internal/request"
	"procura/internal/symbolic"
)

const version = "1.0.0"

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "procura",
	Short: "procura - hybrid procurement pipeline",
	Long: `procura orchestrates bulk laptop procurement through a staged pipeline:
catalog discovery, compute scoring, hybrid symbolic evaluation, and bulk
price negotiation.

The symbolic stage uses Google Mangle (Datalog) rules over classified
candidate facts; a deterministic heuristic covers candidates the rules
leave unscored.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the gateway and pipeline as a long-lived process
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway and procurement pipeline",
	Long: `Starts the full service: the catalog store (seeded from the configured
JSON file and re-seeded on file changes), the compute-scoring simulator,
the configured symbolic engine, the pipeline driver, and the HTTP
gateway with SSE event streams.`,
	RunE: runServe,
}

// procureCmd drives one request from the command line
var procureCmd = &cobra.Command{
	Use:   "procure [requirement sentence]",
	Short: "Run a single procurement request and stream its events",
	Long: `Parses a free-form requirement sentence, drives the pipeline for it, and
prints the event stream to stdout until the request settles or fails.

Example:
  procura procure "I need 20 laptops for video editing under $2000 each"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcure,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("procura %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: built-in defaults)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(procureCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(configPath)
}

// buildSymbolic selects the configured symbolic scorer. The choice is
// config-driven; there is no runtime probing or silent substitution.
func buildSymbolic(cfg *config.Config) (symbolic.Scorer, error) {
	switch cfg.Symbolic.Engine {
	case "mangle":
		return symbolic.NewEngine(symbolic.Config{
			SchemaPath:   cfg.Symbolic.SchemaPath,
			QueryTimeout: cfg.GetQueryTimeout(),
		}, logger)
	case "heuristic":
		return symbolic.Heuristic{}, nil
	default:
		return nil, fmt.Errorf("unknown symbolic engine %q (want mangle or heuristic)", cfg.Symbolic.Engine)
	}
}

// buildStack assembles the collaborators and pipeline driver shared by
// serve and procure.
func buildStack(ctx context.Context, cfg *config.Config) (*pipeline.Driver, *correlation.Store, *notify.Notifier, *catalog.Store, *computesim.Simulator, error) {
	cat, err := catalog.NewStore(cfg.Catalog.DBPath, logger)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	if n, err := cat.SeedFromFile(ctx, cfg.Catalog.SeedPath); err != nil {
		logger.Warn("catalog seed failed, serving existing rows",
			zap.String("path", cfg.Catalog.SeedPath), zap.Error(err))
	} else {
		logger.Info("catalog seeded", zap.Int("laptops", n))
	}

	factors := computesim.DefaultFactors()
	if cfg.Compute.FactorsPath != "" {
		factors, err = computesim.LoadFactors(cfg.Compute.FactorsPath)
		if err != nil {
			cat.Close()
			return nil, nil, nil, nil, nil, fmt.Errorf("load compute factors: %w", err)
		}
	}
	sim := computesim.NewSimulator(factors, logger)

	scorer, err := buildSymbolic(cfg)
	if err != nil {
		cat.Close()
		return nil, nil, nil, nil, nil, err
	}

	store := correlation.NewStore(cfg.GetEntryTTL(), logger)
	notifier := notify.NewNotifier(cfg.Pipeline.EventBufferSize, cfg.GetEventRetention(), logger)

	driver := pipeline.NewDriver(pipeline.Deps{
		Store:      store,
		Notifier:   notifier,
		Discoverer: cat,
		Compute:    sim,
		Symbolic:   scorer,
		Logger:     logger,
	}, cfg.GetStageTimeout())

	return driver, store, notifier, cat, sim, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, store, notifier, cat, sim, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	srv := gateway.NewServer(gateway.Deps{
		Driver:   driver,
		Store:    store,
		Notifier: notifier,
		Catalog:  cat,
		Compute:  sim,
		Logger:   logger,
	}, cfg.Gateway.ListenAddr, cfg.GetShutdownTimeout())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return store.RunReaper(gctx, time.Minute) })
	g.Go(func() error { return notifier.RunJanitor(gctx, time.Minute) })
	if cfg.Catalog.Watch {
		g.Go(func() error { return cat.Watch(gctx, cfg.Catalog.SeedPath) })
	}

	logger.Info("procura serving",
		zap.String("addr", cfg.Gateway.ListenAddr),
		zap.String("symbolic_engine", cfg.Symbolic.Engine))

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runProcure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, _, notifier, cat, _, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	text := strings.Join(args, " ")
	req := request.Parse(text)
	fmt.Printf("Parsed requirement: %d x %s laptops, budget $%g/unit\n",
		req.Quantity, req.UseCase, req.MaxBudgetPerUnit)

	id, err := driver.Submit(ctx, req, "cli")
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	ch := notifier.Subscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-ch:
			if !open {
				return nil
			}
			fmt.Fprintf(out, "[%s] %s\n", ev.At.Format(time.RFC3339), ev.Message)
			out.Flush()
		}
	}
}
