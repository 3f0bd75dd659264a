package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/local/rollscan/internal/config"
	"github.com/local/rollscan/internal/logger"
	"github.com/local/rollscan/internal/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "rollscan",
	Short: "Digitize electoral roll PDFs into voter tables",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.FromEnv()
		opts := logger.FromConfig(cfg.Logging, cfg.Axiom)
		opts.File = ""
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			opts.Level = "debug"
		}
		opts.Pretty = true
		metrics.Init()
		return logger.Init(opts)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.AddCommand(digitizeCmd, convertCmd, inspectCmd)
}

func main() {
	_ = godotenv.Load()
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
