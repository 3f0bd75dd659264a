package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// VisionConfig drives the remote vision-model strategy.
type VisionConfig struct {
    Provider       string // "gemini"|"openai"
    GeminiAPIKey   string
    OpenAIAPIKey   string
    OpenAIBaseURL  string
    Models         []string
    MaxRetries     int
    BaseDelay      time.Duration
    MaxJitter      time.Duration
    RequestTimeout time.Duration
    DPI            int
    JPEGQuality    int
    MaxInflight    int
}

// ConverterConfig points at the remote whole-document conversion endpoint.
type ConverterConfig struct {
    URL     string
    Timeout time.Duration
}

// LocalConfig controls the local fallback path.
type LocalConfig struct {
    Strategy       string // "ocr"|"text"|"vision"|"auto"
    Concurrency    int
    SkipPages      int
    DPI            int
    OCRLanguage    string
    HeaderCutoffPx int
    Photos         bool
    TextThreshold  int
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// StorageConfig says where finished exports go.
type StorageConfig struct {
    ResultDir   string
    UploadDir   string
    S3Bucket    string
    S3Region    string
    S3AccessKey string
    S3SecretKey string
    S3Prefix    string
    S3Password  string
}

// HTTPConfig is the API listener.
type HTTPConfig struct {
    Port          string
    RunDispatcher bool
    Workers       int
    JobTimeout    time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging   LoggingConfig
    Axiom     AxiomConfig
    Vision    VisionConfig
    Converter ConverterConfig
    Local     LocalConfig
    Queue     QueueConfig
    Storage   StorageConfig
    HTTP      HTTPConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/rollscan.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_rollscan",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Vision = VisionConfig{
        Provider:       strings.ToLower(getEnv("VISION_PROVIDER", "gemini")),
        GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
        OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
        OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
        Models:         parseList(getEnv("VISION_MODELS", "gemini-2.0-flash,gemini-1.5-flash,gemini-1.5-pro")),
        MaxRetries:     parseInt(getEnv("VISION_MAX_RETRIES", "6"), 6),
        BaseDelay:      parseDuration(getEnv("VISION_BASE_DELAY", "1500ms"), 1500*time.Millisecond),
        MaxJitter:      parseDuration(getEnv("VISION_MAX_JITTER", "500ms"), 500*time.Millisecond),
        RequestTimeout: parseDuration(getEnv("VISION_REQUEST_TIMEOUT", "90s"), 90*time.Second),
        DPI:            parseInt(getEnv("VISION_DPI", "150"), 150),
        JPEGQuality:    parseInt(getEnv("VISION_JPEG_QUALITY", "85"), 85),
        MaxInflight:    parseInt(getEnv("VISION_MAX_INFLIGHT", "4"), 4),
    }

    cfg.Converter = ConverterConfig{
        URL:     getEnv("CONVERTER_URL", ""),
        Timeout: parseDuration(getEnv("CONVERTER_TIMEOUT", "10m"), 10*time.Minute),
    }

    cfg.Local = LocalConfig{
        Strategy:       strings.ToLower(getEnv("LOCAL_STRATEGY", "ocr")),
        Concurrency:    parseInt(getEnv("LOCAL_CONCURRENCY", "2"), 2),
        SkipPages:      parseInt(getEnv("LOCAL_SKIP_PAGES", "2"), 2),
        DPI:            parseInt(getEnv("OCR_DPI", "300"), 300),
        OCRLanguage:    getEnv("OCR_LANGUAGE", "eng"),
        HeaderCutoffPx: parseInt(getEnv("OCR_HEADER_CUTOFF_PX", "200"), 200),
        Photos:         parseBool(getEnv("EXTRACT_PHOTOS", "0")),
        TextThreshold:  parseInt(getEnv("TEXT_LAYER_THRESHOLD", "50"), 50),
    }
    if cfg.Local.Concurrency <= 0 { cfg.Local.Concurrency = 1 }
    if cfg.Local.SkipPages < 0 { cfg.Local.SkipPages = 0 }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:rolls"),
        Group:        getEnv("QUEUE_GROUP", "workers:rolls"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
    }

    cfg.Storage = StorageConfig{
        ResultDir:   getEnv("RESULT_DIR", "/tmp/rollscan/results"),
        UploadDir:   getEnv("UPLOAD_DIR", "/tmp/rollscan/uploads"),
        S3Bucket:    getEnv("S3_BUCKET", ""),
        S3Region:    getEnv("AWS_REGION", "eu-central-1"),
        S3AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
        S3SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
        S3Prefix:    getEnv("S3_PREFIX", "rolls"),
        S3Password:  getEnv("S3_ENCRYPTION_PASSWORD", ""),
    }

    cfg.HTTP = HTTPConfig{
        Port:          getEnv("PORT", "8080"),
        RunDispatcher: parseBool(getEnv("RUN_DISPATCHER", "1")),
        Workers:       parseInt(getEnv("DISPATCHER_WORKERS", "1"), 1),
        JobTimeout:    parseDuration(getEnv("JOB_TIMEOUT", "2h"), 2*time.Hour),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func parseList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
