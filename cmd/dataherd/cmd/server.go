package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dataherd/dataherd/internal/core/config"
	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/processor"
	"github.com/dataherd/dataherd/internal/report"
	"github.com/dataherd/dataherd/internal/server"
	"github.com/dataherd/dataherd/internal/store"
	"github.com/dataherd/dataherd/internal/translate"
)

const Version = "0.1.0"

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the DataHerd HTTP service",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("host", "", "HTTP server host")
	serverCmd.Flags().Int("port", 0, "HTTP server port")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, closeLog := config.SetupLogger(cfg.LogFormat, cfg.LogFile, config.ParseLevel(cfg.LogLevel))
	defer closeLog()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	ruleStore := store.NewRuleStore(queries)
	batchStore := store.NewBatchStore(queries)
	opStore := store.NewOperationStore(queries)
	applier := store.NewApplier(queries)

	translator := buildTranslator(cfg, log)
	proc := processor.New(translator, ruleStore, batchStore, opStore, applier, cfg.PreviewTTL, log)
	reports := report.NewBuilder(opStore, batchStore, ruleStore)

	srv := server.New(server.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		RequestTimeout: cfg.RequestTimeout,
	}, proc, ruleStore, batchStore, opStore, reports, log)

	log.Info("starting dataherd", "version", Version, "host", cfg.Host, "port", cfg.Port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Info("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// loadConfig applies the persistent and command flags over the file and
// environment configuration.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	return cfg, nil
}

// buildTranslator wires the LLM path when a key is present, else
// pattern-only translation.
func buildTranslator(cfg *config.ServerConfig, log *slog.Logger) *translate.Service {
	apiKey := config.OpenAIAPIKey()
	if apiKey == "" {
		log.Warn("no LLM API key configured, rule translation is pattern-only")
		return translate.NewService(nil, log)
	}
	llm, err := translate.NewLLMTranslator(translate.LLMConfig{
		APIKey:  apiKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}, log)
	if err != nil {
		log.Error("llm translator unavailable, rule translation is pattern-only", "error", err)
		return translate.NewService(nil, log)
	}
	return translate.NewService(llm, log)
}
