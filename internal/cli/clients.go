package cli

import (
	"github.com/spf13/cobra"

	"migrator/internal/config"
	"migrator/internal/flags"
	"migrator/internal/ledger"
	"migrator/internal/relay"
)

func newLedgerClient(c *config.Config) (*ledger.Client, error) {
	retry := ledger.DefaultRetryConfig()
	retry.MaxAttempts = c.Runtime.MaxRetries + 1
	return ledger.NewClient(c.Network.RPCURL,
		ledger.WithVerbose(c.Runtime.Verbose),
		ledger.WithToken(c.Network.RPCToken),
		ledger.WithCommitment(c.Network.Commitment),
		ledger.WithRetryConfig(retry),
		ledger.WithTimeout(c.Runtime.RequestTimeout),
	)
}

func newRelayClient(c *config.Config) (*relay.Client, error) {
	return relay.NewClient(c.Network.RelayURL,
		relay.WithToken(c.Network.RelayToken),
		relay.WithTimeout(c.Runtime.RequestTimeout),
	)
}

// bindTargetFlags adds the collection flag plus the ledger flags.
func bindTargetFlags(cmd *cobra.Command, c *config.Config) {
	cmd.Flags().StringVar(&c.Target.Collection, flags.FlagCollection, "", "Collection mint address (base58)")
	bindLedgerFlags(cmd, c)
}

// bindLedgerFlags adds the flags every ledger-reading command shares.
func bindLedgerFlags(cmd *cobra.Command, c *config.Config) {
	fs := cmd.Flags()
	fs.StringVar(&c.Target.Program, flags.FlagProgram, c.Target.Program, "Migration validator program id")
	fs.StringVar(&c.Network.RPCURL, flags.FlagRPCURL, "", "Ledger JSON-RPC endpoint (default: $MIGRATOR_RPC_URL, Solana CLI config, then mainnet-beta)")
	fs.StringVar(&c.Network.Commitment, flags.FlagCommitment, "", "Read commitment: processed|confirmed|finalized (default: Solana CLI config, then confirmed)")
	fs.StringVar(&c.Network.SolanaConfig, flags.FlagSolanaConfig, "", "Solana CLI config file (default: ~/.config/solana/cli/config.yml)")
	fs.IntVar(&c.Runtime.MaxRetries, flags.FlagMaxRetries, c.Runtime.MaxRetries, "Retries for transient RPC failures")
	fs.DurationVar(&c.Runtime.Timeout, flags.FlagTimeout, c.Runtime.Timeout, "Global timeout for the run")
	fs.DurationVar(&c.Runtime.RequestTimeout, flags.FlagRequestTimeout, c.Runtime.RequestTimeout, "Timeout for each ledger or relay request (0 disables)")
}
