package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"migrator/internal/accounts"
	"migrator/internal/config"
	"migrator/internal/pubkey"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print a collection's migration state",
	Long: `Read and decode the migration state account of --collection and print it
as JSON, together with the cluster the RPC endpoint serves.

Exit codes:
	0 = state printed
	3 = fatal error (state could not be read)
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		cfg.ApplyEnv(os.Getenv)
		if err := cfg.ValidateState(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitFatal)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		code := runState(ctx, cfg, runEnv{stdout: cmd.OutOrStdout(), stderr: os.Stderr})
		stop()
		os.Exit(code)
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	bindTargetFlags(stateCmd, cfg)
}

type stateReport struct {
	Cluster    string                  `json:"cluster"`
	Collection pubkey.Key              `json:"collection"`
	Address    pubkey.Key              `json:"address"`
	Program    pubkey.Key              `json:"program"`
	State      accounts.MigrationState `json:"state"`
}

func runState(ctx context.Context, c *config.Config, env runEnv) int {
	ctx, cancel := context.WithTimeout(ctx, c.Runtime.Timeout)
	defer cancel()

	ledgerClient, err := newLedgerClient(c)
	if err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}

	collection := c.Target.CollectionKey
	addr, err := accounts.MigrationStateAddress(collection, c.Target.ProgramKey)
	if err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}

	st, err := accounts.NewStateReader(ledgerClient, c.Target.ProgramKey).GetState(ctx, collection)
	if err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}

	cluster, err := ledgerClient.Cluster(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not identify cluster")
		cluster = "unknown"
	}

	if err := writeJSON(env.stdout, stateReport{
		Cluster:    cluster,
		Collection: collection,
		Address:    addr,
		Program:    c.Target.ProgramKey,
		State:      st,
	}); err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return ExitFatal
	}
	return ExitOK
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
