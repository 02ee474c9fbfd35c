package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steveyegge/trackport/internal/config"
	"github.com/steveyegge/trackport/internal/debug"
	"github.com/steveyegge/trackport/internal/telemetry"
)

var (
	configFile  string
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	logger = slog.Default()

	// shutdownTelemetry flushes telemetry once the command has finished,
	// whether or not it failed.
	shutdownTelemetry = telemetry.Shutdown
)

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./trackport.yaml, then ~/.config/trackport/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "trackport",
	Short: "trackport - move a task tracker project into an issue tracker",
	Long: `Export a project snapshot (tasks, subtasks, comments, attachments and
users), resolve cross references, and write the issue tracker's import files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := config.InitializeWithFile(configFile); err != nil {
				return err
			}
		}
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		logger = debug.NewLogger(cmd.ErrOrStderr())
		if path := config.ConfigFileUsed(); path != "" {
			debug.Logf("using config file %s\n", path)
		}
		if err := telemetry.Init(cmd.Context(), "trackport", Version); err != nil {
			logger.Warn("telemetry disabled", "error", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "trackport version %s (%s)\n", Version, Build)
			return nil
		}
		return cmd.Help()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run executes the root command and returns the process exit code.
// Cobra skips post-run hooks when a command fails, so telemetry is flushed
// here instead.
func run(ctx context.Context) int {
	defer shutdownTelemetry(context.WithoutCancel(ctx))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}
