package pipeline

import (
	"testing"

	"github.com/local/rollscan/internal/config"
	"github.com/local/rollscan/internal/coordinator"
)

func baseConfig() config.Config {
	var cfg config.Config
	cfg.Local = config.LocalConfig{Strategy: "ocr", Concurrency: 2, SkipPages: 2, DPI: 300, OCRLanguage: "eng", HeaderCutoffPx: 200, TextThreshold: 50}
	cfg.Vision = config.VisionConfig{Provider: "gemini", Models: []string{"a", "b", "c"}, MaxRetries: 6, DPI: 150, JPEGQuality: 85}
	return cfg
}

func TestBuildStrategies(t *testing.T) {
	cases := map[string]func(coordinator.PageExtractor) bool{
		"ocr":  func(e coordinator.PageExtractor) bool { _, ok := e.(coordinator.OCRPages); return ok },
		"text": func(e coordinator.PageExtractor) bool { _, ok := e.(coordinator.TextPages); return ok },
		"auto": func(e coordinator.PageExtractor) bool { _, ok := e.(*coordinator.AutoPages); return ok },
	}
	for name, check := range cases {
		cfg := baseConfig()
		cfg.Local.Strategy = name
		p, err := Build(cfg)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !check(p.Local) {
			t.Errorf("%s: local = %T", name, p.Local)
		}
		if p.Coordinator.Remote != nil || p.Converter != nil {
			t.Errorf("%s: remote/converter wired without config", name)
		}
		if p.Coordinator.SkipPages != 2 || p.Coordinator.Concurrency != 2 {
			t.Errorf("%s: coordinator = %+v", name, p.Coordinator)
		}
	}
}

func TestBuildVisionNeedsKey(t *testing.T) {
	cfg := baseConfig()
	cfg.Local.Strategy = "vision"
	if _, err := Build(cfg); err == nil {
		t.Fatal("vision strategy built without api key")
	}
	cfg.Vision.Provider = "openai"
	cfg.Vision.OpenAIAPIKey = "k"
	cfg.Converter.URL = "http://converter.local/api/convert"
	p, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Local.(coordinator.VisionPages); !ok {
		t.Errorf("local = %T", p.Local)
	}
	if p.Converter == nil || p.Converter.SkipPages != 0 || p.Coordinator.Remote == nil {
		t.Errorf("converter = %+v remote = %v", p.Converter, p.Coordinator.Remote)
	}
	p.Close()
}

func TestBuildUnknownStrategy(t *testing.T) {
	cfg := baseConfig()
	cfg.Local.Strategy = "magic"
	if _, err := Build(cfg); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}
