package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/dicomfn/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagOutput    string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking DICOMFN_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("DICOMFN_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the dicomfnctl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dicomfnctl",
		Short: "dicomfnctl: operate the dicomfn preemptive scheduler",
		Long:  "dicomfnctl starts orchestrations, inspects their status, and drives the preemptive scheduler of a dicomfn server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			if err := validateOutput(flagOutput); err != nil {
				return err
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "dicomfn server URL (or DICOMFN_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", outputText, "Output format (text, yaml)")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newPausedCmd(),
		newRaiseCmd(),
		newResumeCmd(),
		newTickCmd(),
	)

	return root
}
