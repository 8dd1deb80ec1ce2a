package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kilianp07/grantvest/app"
	"github.com/kilianp07/grantvest/config"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/infra/logger"
)

const defaultInput = "Project-Catalyst-Fund-5-Developer-Ecosystem.csv"

var (
	cfgPath   string
	logLevel  string
	inputPath string
	workers   int
)

var rootCmd = &cobra.Command{
	Use:   "grantvest",
	Short: "Token allocation and hybrid vesting for funded grant proposals",
	Long: "grantvest converts the funded proposals of a grant round into token\n" +
		"allocations and projects their cliff + milestone + linear vesting timeline.\n" +
		"Without a subcommand it runs the hybrid policy.",
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		_ = godotenv.Load()
	},
	RunE: runPolicy(report.PolicyHybrid),
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVarP(&inputPath, "input", "i", defaultInput, "funded proposals CSV")
	pf.IntVar(&workers, "workers", 0, "records processed concurrently (0 uses every CPU)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig loads the configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cfg.Logging.Level != "" && !logger.SetLevel(cfg.Logging.Level) {
		return nil, fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	return cfg, nil
}

func newService(cmd *cobra.Command) (*app.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.WithOutput(cmd.OutOrStdout()))
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("close sinks: %v", err)
	}
}

func runPolicy(policy report.Policy) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer closeService(svc)
		_, err = svc.RunFile(ctx, policy, inputPath)
		return err
	}
}
