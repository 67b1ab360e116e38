package main

import (
	"fmt"
	"os"

	"github.com/adcp/salesagent/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operator tools for the sales agent",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg = config.Load()
		log, _ = zap.NewDevelopment()
	},
}

func main() {
	rootCmd.AddCommand(tokenCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
