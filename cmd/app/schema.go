package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"FinSignal/internal/repository"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
)

func schemaCmd(configPath *string) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the ClickHouse DDL, or apply it with --apply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return err
			}
			stmts := repository.Schema(cfg.ClickHouse.Database)
			if !apply {
				for _, s := range stmts {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", s)
				}
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client, err := pkgch.NewClient(ctx,
				pkgch.WithHost(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
				pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
				pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
				pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			)
			if err != nil {
				return fmt.Errorf("clickhouse client: %w", err)
			}
			defer client.Close()
			if err := client.InitSchema(ctx, stmts); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements to %s\n", len(stmts), cfg.ClickHouse.Database)
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "execute the statements against ClickHouse")
	return cmd
}
