// Package main implements the nemo binary: build the optimization model
// for a scenario database, solve it, and write the results back.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bartolsthoorn/gohighs/highs"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/sei-international/nemo/internal/config"
	"github.com/sei-international/nemo/internal/run"
	"github.com/sei-international/nemo/internal/solve"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile   string
		scenario     string
		variables    []string
		restrictVars bool
		reportZeros  bool
		noDiagnose   bool
		verbose      bool
		workers      int
		showVersion  bool
		showHelp     bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVarP(&scenario, "scenario", "s", "", "Path to the scenario SQLite database")
	flag.StringSliceVar(&variables, "vars", nil, "Variables to save (default: all)")
	flag.BoolVar(&restrictVars, "restrict-vars", false, "Declare variables only over observed tuples")
	flag.BoolVar(&reportZeros, "report-zeros", false, "Write zero-valued result rows")
	flag.BoolVar(&noDiagnose, "no-diagnose", false, "Skip infeasibility diagnosis")
	flag.BoolVarP(&verbose, "verbose", "v", false, "Enable solver log output")
	flag.IntVar(&workers, "workers", 0, "Parallel workers (0 = all cores)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVarP(&showHelp, "help", "h", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nemo - energy system optimization engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: nemo --scenario <db> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nemo --scenario utopia.sqlite\n")
		fmt.Fprintf(os.Stderr, "  nemo -s utopia.sqlite --vars vnewcapacity,vtotalcost --report-zeros\n")
		fmt.Fprintf(os.Stderr, "  nemo --config /etc/nemo/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  NEMO_SCENARIO          Scenario database path\n")
		fmt.Fprintf(os.Stderr, "  NEMO_RESULT_VARIABLES  Comma-separated variables to save\n")
		fmt.Fprintf(os.Stderr, "  NEMO_WORKERS           Parallel worker count\n")
		fmt.Fprintf(os.Stderr, "  NEMO_ARCHIVE_*         Result archive settings\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("nemo version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// A .env file supplies NEMO_ variables in development; absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, scenario, variables, restrictVars, reportZeros, noDiagnose, verbose, workers)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := []highs.SolveOption{highs.WithOutput(cfg.Solver.Verbose)}
	if cfg.Solver.TimeLimit > 0 {
		opts = append(opts, highs.WithTimeLimit(cfg.Solver.TimeLimit.Seconds()))
	}
	backend := solve.NewHiGHSBackend(opts...)

	runner, err := run.New(cfg, backend)
	if err != nil {
		log.Fatalf("Failed to set up run: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	summary, err := runner.Run(ctx)
	if err != nil {
		if summary != nil {
			for _, name := range summary.Culprits {
				log.Printf("infeasibility culprit: %s", name)
			}
		}
		log.Fatalf("Run failed: %v", err)
	}

	log.Printf("Run %s: %s, objective %.6g, %d constraints, %s",
		summary.RunID, summary.Outcome, summary.Objective, summary.Constraints, summary.Elapsed)
	if summary.ArchiveKey != "" {
		log.Printf("Archived to %s", summary.ArchiveKey)
	}
}

// loadConfig loads configuration from file, environment, and command line
// flags, in ascending priority.
func loadConfig(configFile, scenario string, variables []string, restrictVars, reportZeros, noDiagnose, verbose bool, workers int) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if scenario != "" {
		cfg.ScenarioPath = scenario
	}
	if len(variables) > 0 {
		cfg.Results.Variables = variables
	}
	if restrictVars {
		cfg.Model.RestrictVars = true
	}
	if reportZeros {
		cfg.Results.ReportZeros = true
	}
	if noDiagnose {
		cfg.Solver.Diagnose = false
	}
	if verbose {
		cfg.Solver.Verbose = true
	}
	if workers > 0 {
		cfg.Model.Workers = workers
	}

	return cfg, nil
}
