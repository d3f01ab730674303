package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"migrator/internal/flags"
	"migrator/internal/logging"
	"migrator/internal/migrate"
	"migrator/internal/pubkey"
)

const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	DefaultCommitment = "confirmed"

	DefaultRequestTimeout = time.Minute
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep the CLI
	// flags in internal/cli/migrate.go and internal/cli/state.go in sync.
	Target  Target
	Network Network
	Output  Output
	Runtime Runtime
}

type Target struct {
	// Collection is the collection mint, base58 (see --collection).
	Collection string

	// Items is the path to a JSON array of item mints (see --items).
	// Required by migrate only.
	Items string

	// Holder selects how each item's token account is found (see --holder).
	// Allowed values: largest, ata:<wallet>.
	Holder string

	// Program is the migration validator program id (see --program).
	Program string

	// CollectionKey and ProgramKey are set by Validate.
	CollectionKey pubkey.Key
	ProgramKey    pubkey.Key
}

type Network struct {
	// RPCURL is the ledger JSON-RPC endpoint (see --rpc-url).
	// Precedence: flag, MIGRATOR_RPC_URL, Solana CLI config, DefaultRPCURL.
	RPCURL string

	// RPCToken is a bearer token for the RPC endpoint (MIGRATOR_RPC_TOKEN).
	RPCToken string

	// RelayURL is the signing relay base URL (see --relay-url, MIGRATOR_RELAY_URL).
	// Required by migrate only.
	RelayURL string

	// RelayToken is a bearer token for the relay (MIGRATOR_RELAY_TOKEN).
	RelayToken string

	// Commitment is the read commitment level (see --commitment).
	// Allowed values: processed, confirmed, finalized.
	Commitment string

	// SolanaConfig is the Solana CLI config file (see --solana-config).
	// Empty means the default location; a missing default file is not an error.
	SolanaConfig string
}

type Output struct {
	// Dir receives the result files (see --out-dir).
	Dir string

	// Events streams NDJSON lifecycle events to this path, or "-" for stdout
	// (see --events).
	Events string

	// Report writes a Markdown report to this path (see --report).
	Report string

	// NoProgress disables the progress bar (see --no-progress).
	NoProgress bool

	// FailureLimit caps failures listed in the console summary (see --failure-limit).
	FailureLimit int
}

type Runtime struct {
	// Concurrency is the maximum number of items in flight (see --concurrency).
	// Must be >= 1.
	Concurrency int

	// Timeout bounds the whole run (see --timeout). Must be > 0.
	Timeout time.Duration

	// RequestTimeout bounds each ledger or relay HTTP request
	// (see --request-timeout). Zero disables the per-request bound.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries for transient RPC failures
	// (see --max-retries). Must be >= 0.
	MaxRetries int

	// Verbose logs every RPC round trip (see --verbose).
	Verbose bool

	// LogLevel is one of debug, info, warn, error (see --log-level).
	LogLevel string

	// LogPretty switches logs to human-readable console output (see --log-pretty).
	LogPretty bool

	// MetricsAddr serves Prometheus metrics when set (see --metrics-addr).
	MetricsAddr string
}

func New() *Config {
	return &Config{
		Target: Target{
			Holder:  migrate.HolderLargest,
			Program: pubkey.MigrationValidatorProgram.String(),
		},
		Output: Output{
			Dir:          ".",
			FailureLimit: 20,
		},
		Runtime: Runtime{
			Concurrency: migrate.DefaultConcurrency,
			Timeout:        2 * time.Hour,
			RequestTimeout: DefaultRequestTimeout,
			MaxRetries:     3,
			LogLevel:       string(logging.LevelInfo),
		},
	}
}

// ApplyEnv fills network settings that were not given as flags from the
// environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	if strings.TrimSpace(c.Network.RPCURL) == "" {
		c.Network.RPCURL = getenv(flags.EnvRPCURL)
	}
	if strings.TrimSpace(c.Network.RelayURL) == "" {
		c.Network.RelayURL = getenv(flags.EnvRelayURL)
	}
	if c.Network.RPCToken == "" {
		c.Network.RPCToken = getenv(flags.EnvRPCToken)
	}
	if c.Network.RelayToken == "" {
		c.Network.RelayToken = getenv(flags.EnvRelayToken)
	}
}

// Validate checks and normalizes a configuration for a migration run.
func (c *Config) Validate() error {
	if err := c.validateCollection(); err != nil {
		return err
	}
	if err := c.validateCommon(); err != nil {
		return err
	}

	c.Target.Items = strings.TrimSpace(c.Target.Items)
	if c.Target.Items == "" {
		return fmt.Errorf("--%s is required", flags.FlagItems)
	}
	if _, _, err := migrate.ParseHolderStrategy(c.Target.Holder); err != nil {
		return fmt.Errorf("invalid --%s value: %w", flags.FlagHolder, err)
	}

	c.Network.RelayURL = strings.TrimSpace(c.Network.RelayURL)
	if c.Network.RelayURL == "" {
		return fmt.Errorf("--%s (or %s) is required", flags.FlagRelayURL, flags.EnvRelayURL)
	}
	if err := validateHTTPURL(c.Network.RelayURL); err != nil {
		return fmt.Errorf("invalid --%s value: %w", flags.FlagRelayURL, err)
	}

	if c.Runtime.Concurrency <= 0 {
		return fmt.Errorf("--%s must be >= 1", flags.FlagConcurrency)
	}
	if c.Output.FailureLimit < 0 {
		return fmt.Errorf("--%s must be >= 0", flags.FlagFailureLimit)
	}
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	c.Output.Events = strings.TrimSpace(c.Output.Events)
	c.Output.Report = strings.TrimSpace(c.Output.Report)
	if c.Output.Report == "-" {
		return fmt.Errorf("--%s needs a file path", flags.FlagReport)
	}
	return nil
}

// ValidateState checks the subset of settings the state command uses.
func (c *Config) ValidateState() error {
	if err := c.validateCollection(); err != nil {
		return err
	}
	return c.validateCommon()
}

// ValidateStates checks the settings the states command uses. It needs no
// collection.
func (c *Config) ValidateStates() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	return nil
}

func (c *Config) validateCollection() error {
	c.Target.Collection = strings.TrimSpace(c.Target.Collection)
	if c.Target.Collection == "" {
		return fmt.Errorf("--%s is required", flags.FlagCollection)
	}
	key, err := pubkey.Parse(c.Target.Collection)
	if err != nil {
		return fmt.Errorf("invalid --%s value: %w", flags.FlagCollection, err)
	}
	c.Target.CollectionKey = key
	return nil
}

func (c *Config) validateCommon() error {
	program := strings.TrimSpace(c.Target.Program)
	if program == "" {
		program = pubkey.MigrationValidatorProgram.String()
	}
	key, err := pubkey.Parse(program)
	if err != nil {
		return fmt.Errorf("invalid --%s value: %w", flags.FlagProgram, err)
	}
	c.Target.ProgramKey = key
	c.Target.Program = program

	if err := c.resolveNetwork(); err != nil {
		return err
	}

	if !logging.ValidLevel(c.Runtime.LogLevel) {
		return fmt.Errorf("unsupported --%s: %s (must be one of: debug, info, warn, error)", flags.FlagLogLevel, c.Runtime.LogLevel)
	}
	if c.Runtime.Timeout <= 0 {
		return fmt.Errorf("--%s must be > 0", flags.FlagTimeout)
	}
	if c.Runtime.RequestTimeout < 0 {
		return fmt.Errorf("--%s must be >= 0", flags.FlagRequestTimeout)
	}
	if c.Runtime.MaxRetries < 0 {
		return fmt.Errorf("--%s must be >= 0", flags.FlagMaxRetries)
	}
	return nil
}

// resolveNetwork applies the Solana CLI config for anything still unset and
// validates the result.
func (c *Config) resolveNetwork() error {
	c.Network.RPCURL = strings.TrimSpace(c.Network.RPCURL)
	c.Network.Commitment = normalizeEnumValue(c.Network.Commitment)

	if c.Network.RPCURL == "" || c.Network.Commitment == "" {
		sc, err := LoadSolanaCLIConfig(c.Network.SolanaConfig)
		if err != nil {
			return err
		}
		if c.Network.RPCURL == "" {
			c.Network.RPCURL = strings.TrimSpace(sc.JSONRPCURL)
		}
		if c.Network.Commitment == "" {
			c.Network.Commitment = normalizeEnumValue(sc.Commitment)
		}
	}
	if c.Network.RPCURL == "" {
		c.Network.RPCURL = DefaultRPCURL
	}
	if c.Network.Commitment == "" {
		c.Network.Commitment = DefaultCommitment
	}

	if err := validateHTTPURL(c.Network.RPCURL); err != nil {
		return fmt.Errorf("invalid --%s value: %w", flags.FlagRPCURL, err)
	}
	switch c.Network.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unsupported --%s: %s (must be one of: processed, confirmed, finalized)", flags.FlagCommitment, c.Network.Commitment)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
