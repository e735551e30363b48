package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/medkg-libsql-go/pkg/medkg"
)

var envFile string

var (
	cfg *medkg.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "medkg",
	Short:         "Medical knowledge graph question answering",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return boot()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(
		versionCmd,
		buildCmd,
		askCmd,
		chatCmd,
		serveCmd,
		statsCmd,
		dictCmd,
	)
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", ".env", "Environment file")
}

// boot loads configuration and sets up logging and metrics.
func boot() error {
	var err error
	cfg, err = medkg.LoadConfig(envFile)
	if err != nil {
		return err
	}
	log, err = logger.New(cfg.Log)
	if err != nil {
		return err
	}
	if err := metrics.Init(cfg.Metrics); err != nil {
		log.Warn("Metrics exporter not started", "error", err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// openService opens the configured backends. The caller closes it.
func openService(ctx context.Context) (*medkg.Service, error) {
	if !cfg.LLMConfigured() {
		log.Warn("No LLM API key configured; answers will fall back", "hint", "set LLM_API_KEY or OPENAI_API_KEY")
	}
	svc, err := medkg.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

func closeService(svc *medkg.Service) {
	if err := svc.Close(context.Background()); err != nil {
		log.Error("Error closing service", "error", err)
	}
}
