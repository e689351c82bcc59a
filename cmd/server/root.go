package main

import "github.com/spf13/cobra"

const version = "0.3.0"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "intake",
		Short:         "Adaptive eye-care intake interview",
		Long:          "intake interviews a patient about an eye complaint, asks adaptive follow-up questions and recommends which eye-care specialist to see.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config file (yaml, toml or json)")

	serve := newServeCmd(opts)
	rootCmd.RunE = serve.RunE

	rootCmd.AddCommand(
		serve,
		newInterviewCmd(opts),
		newMCPCmd(opts),
		newKnowledgeCmd(opts),
		newMigrateCmd(opts),
	)

	return rootCmd
}
