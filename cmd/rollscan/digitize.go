package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/rollscan/internal/config"
	"github.com/local/rollscan/internal/coordinator"
	"github.com/local/rollscan/internal/filetype"
	"github.com/local/rollscan/internal/pipeline"
	"github.com/local/rollscan/internal/voter"
)

var digitizeCmd = &cobra.Command{
	Use:   "digitize <roll.pdf>",
	Short: "Extract voters from a roll and write a CSV or xlsx table",
	Long: `Runs the remote converter when CONVERTER_URL is set and falls back to
local page extraction. The local strategy comes from LOCAL_STRATEGY unless
--strategy is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDigitize,
}

func init() {
	digitizeCmd.Flags().StringP("output", "o", "", "output file; .xlsx writes a workbook (default: stdout CSV)")
	digitizeCmd.Flags().String("strategy", "", "local strategy: ocr, text, vision or auto")
	digitizeCmd.Flags().IntP("concurrency", "c", 0, "pages per batch (default LOCAL_CONCURRENCY)")
	digitizeCmd.Flags().Int("skip", -1, "leading pages to skip (default LOCAL_SKIP_PAGES)")
	digitizeCmd.Flags().Bool("photos", false, "include cropped voter photos")
	digitizeCmd.Flags().Bool("local", false, "skip the remote converter")
}

func runDigitize(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := filetype.New().RequirePDF(path); err != nil {
		return err
	}

	cfg := config.FromEnv()
	if s, _ := cmd.Flags().GetString("strategy"); s != "" {
		cfg.Local.Strategy = strings.ToLower(s)
	}
	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		cfg.Local.Concurrency = c
	}
	if s, _ := cmd.Flags().GetInt("skip"); s >= 0 {
		cfg.Local.SkipPages = s
	}
	if local, _ := cmd.Flags().GetBool("local"); local {
		cfg.Converter.URL = ""
	}
	photos, _ := cmd.Flags().GetBool("photos")
	output, _ := cmd.Flags().GetString("output")

	pipe, err := pipeline.Build(cfg)
	if err != nil {
		return err
	}
	defer pipe.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := pipe.Coordinator.Digitize(ctx, coordinator.Document{Path: path, IncludePhotos: photos})
	if err != nil && (res == nil || len(res.Voters) == 0) {
		return fmt.Errorf("digitize %s: %w", path, err)
	}
	if err != nil {
		log.Warn().Err(err).Msg("interrupted, writing partial result")
	}
	log.Info().
		Str("source", res.Source).
		Int("voters", len(res.Voters)).
		Ints("failed_pages", res.FailedPages).
		Msg("done")
	return writeVoters(output, res.Voters)
}

func writeVoters(output string, voters []voter.Voter) error {
	if output == "" {
		return voter.WriteTable(os.Stdout, voters)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(output), ".xlsx") {
		err = voter.WriteWorkbook(f, voters)
	} else {
		err = voter.WriteTable(f, voters)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
