package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"migrator/internal/accounts"
	"migrator/internal/config"
	"migrator/internal/flags"
	"migrator/internal/metrics"
	"migrator/internal/migrate"
	"migrator/internal/output"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate a list of collection items",
	Long: `Migrate every item in --items into --collection.

The collection's migration state is read once. Each item is then resolved
(token account, owner, owner program) and submitted to the signing relay, with
at most --concurrency items in flight. One item failing never stops the others.

Authentication:
	MIGRATOR_RPC_TOKEN    bearer token for the RPC endpoint (optional)
	MIGRATOR_RELAY_TOKEN  bearer token for the relay (optional)

Output:
	<out-dir>/<collection>_migrated_mints.json  [{"sig": ..., "item_mint": ...}]
	<out-dir>/<collection>_failed_mints.json    [{"mint": ..., "error": ...}]

	--report writes a Markdown report grouping failures by reason.
	--events streams NDJSON lifecycle events (run.started, item.succeeded,
	item.failed, run.finished) to a file, or to stdout with "-".

Exit codes:
	0 = every item migrated
	2 = partial failure (some items failed)
	3 = fatal error (batch did not run, or results could not be written)

Examples:
	migrator migrate --collection <MINT> --items mints.json --relay-url http://localhost:8080

	# Items held in a known wallet's associated token accounts
	migrator migrate --collection <MINT> --items mints.json --holder ata:<WALLET>
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		cfg.ApplyEnv(os.Getenv)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitFatal)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code := runMigrate(ctx, cfg, runEnv{
			stdout:   os.Stdout,
			stderr:   os.Stderr,
			progress: output.IsTerminal(os.Stderr),
		})
		stop()
		os.Exit(code)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	bindTargetFlags(migrateCmd, cfg)

	// Target
	migrateCmd.Flags().StringVar(&cfg.Target.Items, flags.FlagItems, "", "JSON file with an array of item mint addresses")
	migrateCmd.Flags().StringVar(&cfg.Target.Holder, flags.FlagHolder, cfg.Target.Holder, `Token account lookup: "largest" (largest holder on the ledger) or "ata:<wallet>"`)

	// Network
	migrateCmd.Flags().StringVar(&cfg.Network.RelayURL, flags.FlagRelayURL, "", "Signing relay base URL (default: $MIGRATOR_RELAY_URL)")

	// Output
	migrateCmd.Flags().StringVar(&cfg.Output.Dir, flags.FlagOutDir, cfg.Output.Dir, "Directory for the result files")
	migrateCmd.Flags().StringVar(&cfg.Output.Events, flags.FlagEvents, "", `Stream NDJSON events to this file ("-" for stdout)`)
	migrateCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	migrateCmd.Flags().BoolVar(&cfg.Output.NoProgress, flags.FlagNoProgress, false, "Disable the progress bar")
	migrateCmd.Flags().IntVar(&cfg.Output.FailureLimit, flags.FlagFailureLimit, cfg.Output.FailureLimit, "Failures listed in the summary (0 = none)")

	// Runtime
	migrateCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Maximum items in flight")
	migrateCmd.Flags().StringVar(&cfg.Runtime.MetricsAddr, flags.FlagMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// runEnv holds the process streams so runs can be driven from tests.
type runEnv struct {
	stdout   io.Writer
	stderr   io.Writer
	progress bool
}

// runMigrate executes one validated migration run and returns its exit code.
func runMigrate(ctx context.Context, c *config.Config, env runEnv) int {
	ctx, cancel := context.WithTimeout(ctx, c.Runtime.Timeout)
	defer cancel()

	fatal := func(format string, args ...any) int {
		fmt.Fprintf(env.stderr, "Error: "+format+"\n", args...)
		return ExitFatal
	}

	items, err := migrate.LoadItemListFile(c.Target.Items)
	if err != nil {
		return fatal("%v", err)
	}

	if c.Runtime.MetricsAddr != "" {
		if err := metrics.Serve(ctx, c.Runtime.MetricsAddr); err != nil {
			return fatal("metrics server: %v", err)
		}
		log.Info().Str("addr", c.Runtime.MetricsAddr).Msg("serving metrics")
	}

	ledgerClient, err := newLedgerClient(c)
	if err != nil {
		return fatal("%v", err)
	}
	relayClient, err := newRelayClient(c)
	if err != nil {
		return fatal("%v", err)
	}
	locator, err := migrate.NewLocator(c.Target.Holder, ledgerClient)
	if err != nil {
		return fatal("%v", err)
	}
	resolver, err := migrate.NewResolver(ledgerClient, locator, relayClient)
	if err != nil {
		return fatal("%v", err)
	}
	scheduler, err := migrate.NewScheduler(resolver, c.Runtime.Concurrency)
	if err != nil {
		return fatal("%v", err)
	}
	driver, err := migrate.NewDriver(accounts.NewStateReader(ledgerClient, c.Target.ProgramKey), scheduler)
	if err != nil {
		return fatal("%v", err)
	}

	sinks, summaryOut, err := buildSinks(c, env, len(items))
	if err != nil {
		return fatal("%v", err)
	}
	scheduler.SetObserver(func(o migrate.Outcome) {
		if err := sinks.Write(o); err != nil {
			log.Warn().Err(err).Msg("output sink write failed")
		}
	})

	collection := c.Target.CollectionKey
	_ = sinks.Write(output.RunStarted(collection, len(items)))

	res, err := driver.Run(ctx, items, collection)
	if err != nil {
		_ = sinks.Write(output.RunFinished(collection, res, ExitFatal))
		_ = sinks.Close()
		return fatal("%v", err)
	}

	code := exitCodeFor(res)
	paths, werr := output.WriteResults(c.Output.Dir, collection, res)
	if werr != nil {
		code = ExitFatal
	}
	_ = sinks.Write(output.RunFinished(collection, res, code))
	if err := sinks.Close(); err != nil {
		log.Warn().Err(err).Msg("closing output sinks failed")
	}

	summary := output.NewSummary(summaryOut)
	summary.SetFailureLimit(c.Output.FailureLimit)
	if err := summary.Print(collection, res, paths); err != nil {
		log.Warn().Err(err).Msg("printing summary failed")
	}
	if werr != nil {
		return fatal("write results: %v", werr)
	}
	return code
}

func exitCodeFor(res migrate.BatchResult) int {
	if len(res.Failed) > 0 {
		return ExitPartial
	}
	return ExitOK
}

// buildSinks assembles the live outputs. When events go to stdout the
// summary moves to stderr so stdout stays NDJSON.
func buildSinks(c *config.Config, env runEnv, total int) (*output.Manager, io.Writer, error) {
	mgr := output.NewManager()
	summaryOut := env.stdout

	if env.progress && !c.Output.NoProgress && total > 0 {
		if err := mgr.AddSink(output.NewProgress(env.stderr, total)); err != nil {
			return nil, nil, err
		}
	}

	if c.Output.Report != "" {
		s, err := output.NewReportSink(c.Output.Report)
		if err != nil {
			return nil, nil, err
		}
		if err := mgr.AddSink(s); err != nil {
			return nil, nil, err
		}
	}

	switch c.Output.Events {
	case "":
	case "-":
		// Wrapped so closing the sink does not close stdout.
		s, err := output.NewEventSink(struct{ io.Writer }{env.stdout})
		if err != nil {
			return nil, nil, err
		}
		if err := mgr.AddSink(s); err != nil {
			return nil, nil, err
		}
		summaryOut = env.stderr
	default:
		f, err := os.Create(c.Output.Events)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create events file: %w", err)
		}
		s, err := output.NewEventSink(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		if err := mgr.AddSink(s); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return mgr, summaryOut, nil
}
