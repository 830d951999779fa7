package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var databaseFlag string

	_ = godotenv.Load()
	ctx := newCommandContext(&databaseFlag)

	rootCmd := &cobra.Command{
		Use:           "apikey",
		Short:         "Manage Scribe API keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&databaseFlag, "database", os.Getenv("DATABASE_URL"),
		"Database URL (postgres:// or sqlite://)")

	rootCmd.AddCommand(newCreateCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newRevokeCommand(ctx))

	return rootCmd
}
