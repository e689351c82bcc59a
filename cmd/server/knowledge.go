package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eyecare-intake/internal/knowledge"
)

func newKnowledgeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage reference passages",
	}

	cmd.AddCommand(
		newKnowledgeAddCmd(opts),
	)

	return cmd
}

func newKnowledgeAddCmd(opts *rootOptions) *cobra.Command {
	var content, source, topic string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a passage to the knowledge base",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Knowledge.Driver == "" {
				return errKnowledgeDisabled
			}
			store, err := knowledge.Open(cmd.Context(), cfg.Knowledge.Driver, cfg.Knowledge.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			meta := map[string]string{}
			if source != "" {
				meta["source"] = source
			}
			if topic != "" {
				meta["topic"] = topic
			}
			if err := store.Add(cmd.Context(), content, meta); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "document added")
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "passage text")
	cmd.Flags().StringVar(&source, "source", "", "where the passage comes from")
	cmd.Flags().StringVar(&topic, "topic", "", "topic tag")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply knowledge store migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			switch cfg.Knowledge.Driver {
			case "postgres":
				if err := knowledge.Migrate(cfg.Knowledge.DSN, cfg.Knowledge.Migrations); err != nil {
					return err
				}
			case "sqlite":
				// The SQLite store creates its schema on open.
				store, err := knowledge.OpenSQLite(cmd.Context(), cfg.Knowledge.DSN)
				if err != nil {
					return err
				}
				store.Close()
			default:
				return errKnowledgeDisabled
			}
			logger.Info("migrations applied", "driver", cfg.Knowledge.Driver)
			return nil
		},
	}
}
