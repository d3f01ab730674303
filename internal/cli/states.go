package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"migrator/internal/accounts"
	"migrator/internal/config"
	"migrator/internal/flags"
	"migrator/internal/output"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Write every migration state on the cluster to a file",
	Long: `List all accounts owned by the migration validator program, decode the
migration states among them and write them to
{out-dir}/{cluster}_migration_states.json.

Accounts that are not migration states, such as the program signer, are
skipped.

Exit codes:
	0 = states written
	3 = fatal error (accounts could not be listed or the file not written)
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg.ApplyEnv(os.Getenv)
		if err := cfg.ValidateStates(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitFatal)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		code := runStates(ctx, cfg, runEnv{stdout: cmd.OutOrStdout(), stderr: os.Stderr})
		stop()
		os.Exit(code)
	},
}

func init() {
	rootCmd.AddCommand(statesCmd)
	bindLedgerFlags(statesCmd, cfg)
	statesCmd.Flags().StringVar(&cfg.Output.Dir, flags.FlagOutDir, cfg.Output.Dir, "Directory for the states file")
}

func runStates(ctx context.Context, c *config.Config, env runEnv) int {
	ctx, cancel := context.WithTimeout(ctx, c.Runtime.Timeout)
	defer cancel()

	ledgerClient, err := newLedgerClient(c)
	if err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}

	states, skipped, err := accounts.ListStates(ctx, ledgerClient, c.Target.ProgramKey)
	if err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}
	for _, addr := range skipped {
		log.Debug().Str("account", addr.String()).Msg("skipping non-state account")
	}

	cluster, err := ledgerClient.Cluster(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not identify cluster")
		cluster = "unknown"
	}

	path, err := output.WriteStates(c.Output.Dir, cluster, states)
	if err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}
	if err := output.PrintStates(env.stdout, len(states), len(skipped), path); err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}
	return ExitOK
}
