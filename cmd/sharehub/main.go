package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sharehub/pkg/config"
	"sharehub/pkg/console"
	"sharehub/pkg/coordinator"
	"sharehub/pkg/notify"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sharehub",
		Short: "Multi-client file-sharing server",
		Long: `A file-sharing server: clients connect over TCP, authenticate,
upload and share files, and receive notifications about files shared with
them while they were offline.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		serverCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serverCmd() *cobra.Command {
	var (
		address string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the sharing server",
		Long:  `Start the server: accept client connections, synchronize file ownership and presence, and persist state periodically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			// Optional .env file for local runs; ignored when absent.
			_ = godotenv.Load()

			var cfg *config.Config
			var err error
			if configFile != "" {
				cfg, err = config.LoadConfig(configFile)
			} else {
				cfg, err = config.LoadFromEnv()
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("address") {
				cfg.Address = address
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			pane := console.NewPane(os.Stdout)

			var notifier notify.Notifier = notify.Nop{}
			var mailer *notify.Mailer
			if cfg.Mail.Enabled {
				mailer = notify.NewMailer(cfg.Mail.Host, cfg.Mail.Port,
					cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, pane, logger)
				notifier = mailer
			}

			coord, err := coordinator.New(cfg, logger, pane, notifier)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				logger.Info("Shutting down server")
				coord.Stop()
				if mailer != nil {
					mailer.Close()
				}
				os.Exit(0)
			}()

			logger.Info("Starting server",
				zap.String("address", cfg.Address),
				zap.String("data_dir", cfg.DataDir))

			return coord.Start()
		},
	}

	cmd.Flags().StringVar(&address, "address", ":9010", "listening address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory for server data")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("sharehub v0.1.0")
		},
	}
}

func setupLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, _ := config.Build()
	return logger
}
