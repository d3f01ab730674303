package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// config validation messages.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Target.Collection, flags.FlagCollection, "", "...")
//	arg := "--" + flags.FlagCollection
const (
	// Target
	FlagCollection = "collection"
	FlagItems      = "items"
	FlagHolder     = "holder"
	FlagProgram    = "program"

	// Network
	FlagRPCURL       = "rpc-url"
	FlagRelayURL     = "relay-url"
	FlagCommitment   = "commitment"
	FlagSolanaConfig = "solana-config"

	// Output
	FlagOutDir       = "out-dir"
	FlagEvents       = "events"
	FlagReport       = "report"
	FlagNoProgress   = "no-progress"
	FlagFailureLimit = "failure-limit"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout        = "timeout"
	FlagRequestTimeout = "request-timeout"
	FlagMaxRetries     = "max-retries"
	FlagVerbose        = "verbose"
	FlagLogLevel       = "log-level"
	FlagLogPretty      = "log-pretty"
	FlagMetricsAddr    = "metrics-addr"
)

// Environment variables read by the CLI.
const (
	EnvRPCURL     = "MIGRATOR_RPC_URL"
	EnvRPCToken   = "MIGRATOR_RPC_TOKEN"
	EnvRelayURL   = "MIGRATOR_RELAY_URL"
	EnvRelayToken = "MIGRATOR_RELAY_TOKEN"
)
