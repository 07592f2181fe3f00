package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/api"
	"github.com/banshee-data/capability.report/internal/config"
	"github.com/banshee-data/capability.report/internal/db"
	"github.com/banshee-data/capability.report/internal/monitoring"
	"github.com/banshee-data/capability.report/internal/report"
	"github.com/banshee-data/capability.report/internal/security"
	"github.com/banshee-data/capability.report/internal/version"
	"github.com/banshee-data/capability.report/internal/visits"
)

// errUsage means usage has already been printed.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "serve":
		return runServe(ctx, rest, stderr)
	case "analyze":
		return runAnalyze(ctx, rest, stdout, stderr)
	case "migrate":
		return runMigrate(rest, stdin, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `capability - process capability calculator

Usage: capability <command> [options]

Commands:
  serve      Run the HTTP API
  analyze    Analyze a JSON or YAML file of groups and print the report
  migrate    Manage the run database schema
  version    Show version information
  help       Show this help message

Examples:
  capability serve -listen :8080 -db capability.db
  capability analyze -in examples/groups.yaml -plots plots
  capability migrate -db capability.db status
`)
}

// loadConfig reads path, or the defaults file when path is empty and the
// defaults file exists, or falls back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadConfig(config.DefaultConfigPath)
	}
	return config.EmptyConfig(), nil
}

// parseFlags parses a subcommand's flags. A help request is reported as
// flag.ErrHelp so callers can exit cleanly.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "Listen address (overrides config)")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	configPath := fs.String("config", "", "Path to JSON config file")
	devMode := fs.Bool("dev", false, "Run in dev mode with a throwaway database")
	if err := parseFlags(fs, args, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}
	path := cfg.GetDBPath()
	if *dbPath != "" {
		path = *dbPath
	}
	if *devMode {
		dir, err := os.MkdirTemp("", "capability-dev-*")
		if err != nil {
			return fmt.Errorf("create dev database dir: %w", err)
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "capability.db")
		monitoring.Logf("dev mode: using throwaway database %s", path)
	}

	store, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	mux := api.NewServer(cfg, store, visits.NewCounter()).ServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return fmt.Errorf("failed to attach admin routes: %w", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitoring.Logf("listening on %s (database %s)", addr, path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		monitoring.Logf("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func runAnalyze(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	in := fs.String("in", "", "JSON or YAML file describing the groups (required)")
	configPath := fs.String("config", "", "Path to JSON config file")
	analyst := fs.String("analyst", "", "Analyst name (overrides the file)")
	plot := fs.Bool("plot", false, "Write PNG charts under the configured plot_dir")
	plotDir := fs.String("plots", "", "Write PNG charts under this directory")
	dbPath := fs.String("db", "", "Also store the run in this SQLite database")
	if err := parseFlags(fs, args, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *in == "" {
		fmt.Fprintln(stderr, "Error: -in flag is required")
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	req, err := analysis.LoadRequest(*in)
	if err != nil {
		return err
	}
	if *analyst != "" {
		req.Analyst = *analyst
	}
	if slots := req.Slots(); !cfg.AllowsGroupCount(slots) {
		return fmt.Errorf("group count %d is not one of %v", slots, cfg.GetGroupCountChoices())
	}

	rep, err := analysis.Analyze(ctx, req, cfg.GetDefaultSubgroupSize())
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Run %s\n\n", rep.RunID)
	if err := report.WriteGroups(stdout, rep); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	switch err := report.WriteTable(stdout, report.SummaryTable(rep)); {
	case errors.Is(err, report.ErrNoData):
		fmt.Fprintln(stdout, "No groups accepted.")
	case err != nil:
		return err
	}
	fmt.Fprintln(stdout)
	if err := report.WriteCapability(stdout, rep); err != nil {
		return err
	}

	dir := *plotDir
	if dir == "" && *plot {
		dir = cfg.GetPlotDir()
	}
	if dir != "" {
		if err := writePlots(dir, cfg, rep, stdout); err != nil {
			return err
		}
	}

	if *dbPath != "" {
		if rep.Summary == nil {
			fmt.Fprintln(stdout, "Run not stored: no process estimate.")
			return nil
		}
		store, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()
		if err := store.SaveReport(ctx, rep); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Stored run %s in %s\n", rep.RunID, *dbPath)
	}
	return nil
}

func writePlots(dir string, cfg *config.Config, rep *analysis.Report, stdout io.Writer) error {
	if err := security.ValidateOutputDir(dir); err != nil {
		return err
	}
	plotter := report.NewPlotter(cfg.GetPlotWidthInches(), cfg.GetPlotHeightInches())
	files, err := plotter.WritePlots(dir, rep)
	if errors.Is(err, report.ErrNoData) {
		fmt.Fprintln(stdout, "No charts written: no groups accepted.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	for _, f := range files {
		fmt.Fprintf(stdout, "Wrote %s\n", f)
	}
	return nil
}

func runMigrate(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	configPath := fs.String("config", "", "Path to JSON config file")
	fs.Usage = func() { db.PrintMigrateHelp(stderr) }
	if err := parseFlags(fs, args, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	path := *dbPath
	if path == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		path = cfg.GetDBPath()
	}

	err := db.RunMigrateCommand(fs.Args(), path, stdin, stdout)
	if errors.Is(err, db.ErrMigrateUsage) {
		fmt.Fprintln(stderr, err)
		return errUsage
	}
	return err
}
