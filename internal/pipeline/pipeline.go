// Package pipeline assembles the extraction strategies from configuration.
package pipeline

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/rollscan/internal/ai"
	"github.com/local/rollscan/internal/config"
	"github.com/local/rollscan/internal/convert"
	"github.com/local/rollscan/internal/coordinator"
	"github.com/local/rollscan/internal/imagerender"
	"github.com/local/rollscan/internal/limiter"
	"github.com/local/rollscan/internal/ocr"
	"github.com/local/rollscan/internal/textlayer"
	"github.com/local/rollscan/internal/vision"
)

// Pipeline holds the wired coordinators.
type Pipeline struct {
	// Coordinator runs remote conversion with the configured local fallback.
	Coordinator *coordinator.Coordinator
	// Converter runs the vision model over every page; nil without an API key.
	Converter *coordinator.Coordinator
	// Local is the page extractor selected by the local strategy setting.
	Local coordinator.PageExtractor

	closers []func() error
}

// VisionClient returns the configured provider client, or nil when its
// API key is missing.
func VisionClient(cfg config.VisionConfig) ai.Client {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	default:
		if cfg.GeminiAPIKey == "" {
			return nil
		}
		return ai.NewGeminiClient(cfg.GeminiAPIKey)
	}
}

// VisionAPIKey returns the key of the configured provider.
func VisionAPIKey(cfg config.VisionConfig) string {
	if cfg.Provider == "openai" {
		return cfg.OpenAIAPIKey
	}
	return cfg.GeminiAPIKey
}

// Build wires strategies according to cfg.
func Build(cfg config.Config) (*Pipeline, error) {
	p := &Pipeline{}

	var visionPages coordinator.PageExtractor
	if client := VisionClient(cfg.Vision); client != nil {
		if c, ok := client.(interface{ Close() error }); ok {
			p.closers = append(p.closers, c.Close)
		}
		sched := vision.Schedule{
			Models:     cfg.Vision.Models,
			MaxRetries: cfg.Vision.MaxRetries,
			BaseDelay:  cfg.Vision.BaseDelay,
			MaxJitter:  cfg.Vision.MaxJitter,
		}
		vs := vision.New(client, sched, cfg.Vision.RequestTimeout)
		vs.Limiter = limiter.New(cfg.Vision.MaxInflight)
		visionPages = coordinator.VisionPages{
			Renderer: imagerender.New(cfg.Vision.DPI, cfg.Vision.JPEGQuality),
			Strategy: vs,
		}
	}

	ocrPages := coordinator.OCRPages{
		Renderer: imagerender.New(cfg.Local.DPI, cfg.Vision.JPEGQuality),
		Strategy: ocr.New(ocr.NewTesseract(cfg.Local.OCRLanguage), cfg.Local.HeaderCutoffPx),
	}
	textPages := coordinator.TextPages{Strategy: textlayer.New()}

	switch cfg.Local.Strategy {
	case coordinator.StrategyOCR, "":
		p.Local = ocrPages
	case coordinator.StrategyText:
		p.Local = textPages
	case coordinator.StrategyVision:
		if visionPages == nil {
			return nil, fmt.Errorf("local strategy %q needs a %s api key", cfg.Local.Strategy, cfg.Vision.Provider)
		}
		p.Local = visionPages
	case coordinator.StrategyAuto:
		prober := textlayer.NewProber(cfg.Local.TextThreshold, cfg.Local.SkipPages)
		p.Local = &coordinator.AutoPages{
			Probe: coordinator.TextLayerProbeFunc(func(path string) (bool, error) {
				ok, diag, err := prober.HasTextLayer(path)
				if diag != nil {
					log.Debug().Str("file", path).Int("chars", diag.TotalChars).Int("ids", diag.TotalIDs).Bool("text_layer", ok).Msg("text layer probe")
				}
				return ok, err
			}),
			Text: textPages,
			OCR:  ocrPages,
		}
	default:
		return nil, fmt.Errorf("unknown local strategy %q", cfg.Local.Strategy)
	}

	pages := coordinator.PageCountFunc(imagerender.PageCount)

	var remote coordinator.RemoteConverter
	if cfg.Converter.URL != "" {
		remote = convert.New(cfg.Converter.URL, cfg.Converter.Timeout)
	}
	p.Coordinator = coordinator.New(remote, p.Local, pages, cfg.Local.Concurrency, cfg.Local.SkipPages)

	if visionPages != nil {
		p.Converter = coordinator.New(nil, visionPages, pages, cfg.Local.Concurrency, 0)
	}

	log.Info().
		Str("local_strategy", cfg.Local.Strategy).
		Bool("remote", remote != nil).
		Bool("vision", visionPages != nil).
		Int("concurrency", cfg.Local.Concurrency).
		Int("skip_pages", cfg.Local.SkipPages).
		Msg("pipeline ready")
	return p, nil
}

// Close releases provider clients.
func (p *Pipeline) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}
