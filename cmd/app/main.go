package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"FinSignal/internal/di"
	"FinSignal/pkg/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "finsignal",
		Short:        "Multi-timeframe confluence scoring and signal engine",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	root.AddCommand(serveCmd(&configPath), schemaCmd(&configPath), checkCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner, outcome consumer and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(*configPath)
		},
	}
}

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: env=%s symbols=%v timeframes=%v\n",
				cfg.Environment, cfg.Engine.Symbols, cfg.Engine.Timeframes)
			return nil
		},
	}
}

func serve(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log.Printf("env=%s symbols=%v timeframes=%v", cfg.Environment, cfg.Engine.Symbols, cfg.Engine.Timeframes)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v signals=%s outcomes=%s", cfg.Kafka.Brokers, cfg.Kafka.SignalTopic, cfg.Kafka.OutcomeTopic)
	}

	return app.Run()
}
