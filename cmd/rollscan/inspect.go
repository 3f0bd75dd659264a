package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/local/rollscan/internal/config"
	"github.com/local/rollscan/internal/filetype"
	"github.com/local/rollscan/internal/imagerender"
	"github.com/local/rollscan/internal/textlayer"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <roll.pdf>",
	Short: "Report file type, page count and whether the roll has a usable text layer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		info, err := filetype.New().Detect(path)
		if err != nil {
			return err
		}
		out := map[string]any{"file": path, "type": info}
		if pages, err := imagerender.PageCount(path); err == nil {
			out["pages"] = pages
		} else {
			out["pages_error"] = err.Error()
		}
		cfg := config.FromEnv()
		ok, diag, err := textlayer.NewProber(cfg.Local.TextThreshold, cfg.Local.SkipPages).HasTextLayer(path)
		out["has_text_layer"] = ok
		out["diagnostics"] = diag
		if err != nil {
			out["probe_error"] = err.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
