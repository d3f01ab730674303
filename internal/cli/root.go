package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"migrator/internal/config"
	"migrator/internal/flags"
	"migrator/internal/logging"
	"migrator/internal/output"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// Exit codes shared by all commands.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitPartial = 2
	ExitFatal   = 3
)

var cfg = config.New()

var rootCmd = &cobra.Command{
	Use:   "migrator",
	Short: "Migrate NFT collection items with bounded concurrency",
	Long: `Migrator moves every item of an NFT collection through the migration
validator program, many items at a time, and records which items succeeded
and which failed.

Examples:
	# Show available commands and global flags
	migrator --help

	# Migrate a list of mints
	migrator migrate --collection <MINT> --items mints.json --relay-url http://localhost:8080

	# Inspect a collection's migration state
	migrator state --collection <MINT>

	# Write every migration state on the cluster to a file
	migrator states --out-dir states/

	# Print build info
	migrator version

Output:
	Logs go to stderr. Result files and summaries go to the output directory and stdout.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every RPC round trip; implies --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&cfg.Runtime.LogLevel, flags.FlagLogLevel, cfg.Runtime.LogLevel, "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.LogPretty, flags.FlagLogPretty, false, "Human-readable logs (default: on when stderr is a terminal)")
}

func setupLogging(c *config.Config) {
	level := logging.Level(c.Runtime.LogLevel)
	if c.Runtime.Verbose {
		level = logging.LevelDebug
	}
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: c.Runtime.LogPretty || output.IsTerminal(os.Stderr),
		Output: os.Stderr,
	})
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}
}
