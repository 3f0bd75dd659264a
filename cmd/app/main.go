package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/rollscan/internal/config"
    "github.com/local/rollscan/internal/dispatcher"
    "github.com/local/rollscan/internal/filetype"
    logpkg "github.com/local/rollscan/internal/logger"
    "github.com/local/rollscan/internal/metrics"
    "github.com/local/rollscan/internal/orchestrator"
    "github.com/local/rollscan/internal/pipeline"
    "github.com/local/rollscan/internal/queue"
    "github.com/local/rollscan/internal/statuscheck"
    "github.com/local/rollscan/internal/storage"
    "github.com/local/rollscan/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    if err := logpkg.Init(logpkg.FromConfig(cfg.Logging, cfg.Axiom)); err != nil {
        fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
    }
    defer logpkg.Close()
    metrics.Init()

    // Queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rq.Close()

    // Stores share the queue connection
    rs := store.NewRedisStatusFromClient(rq.Client())
    voters := store.NewVoterStore(rq.Client())

    // Results: local disk, mirrored to S3 when a bucket is set
    results := storage.Mirrored{Primary: storage.Local{Dir: cfg.Storage.ResultDir}}
    var s3Pinger statuscheck.Pinger
    if cfg.Storage.S3Bucket != "" {
        s3c, err := storage.NewS3Client(context.Background(), storage.S3Options{
            Bucket:    cfg.Storage.S3Bucket,
            Region:    cfg.Storage.S3Region,
            AccessKey: cfg.Storage.S3AccessKey,
            SecretKey: cfg.Storage.S3SecretKey,
            Prefix:    cfg.Storage.S3Prefix,
            Password:  cfg.Storage.S3Password,
        })
        if err != nil {
            log.Warn().Err(err).Msg("s3 unavailable; results stay local")
        } else {
            results.Archive = s3c
            s3Pinger = s3c
        }
    }

    pipe, err := pipeline.Build(cfg)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to build extraction pipeline")
    }
    defer pipe.Close()
    pipe.Coordinator.Reporter = dispatcher.StatusReporter{Status: rs}

    deps := orchestrator.Dependencies{
        Queue:     rq,
        Status:    rs,
        Voters:    voters,
        Results:   results,
        Validator: filetype.New(),
        Checker: statuscheck.New(statuscheck.Options{
            Redis:        rq,
            S3:           s3Pinger,
            ConverterURL: cfg.Converter.URL,
            Provider:     cfg.Vision.Provider,
            VisionAPIKey: pipeline.VisionAPIKey(cfg.Vision),
        }),
        UploadDir:          cfg.Storage.UploadDir,
        DefaultConcurrency: cfg.Local.Concurrency,
        DefaultPhotos:      cfg.Local.Photos,
    }
    if pipe.Converter != nil {
        deps.Converter = pipe.Converter
    }
    orch := orchestrator.New(deps)
    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)

    bg, stopBg := context.WithCancel(context.Background())
    defer stopBg()
    go orchestrator.RunJanitor(bg, cfg.Storage.UploadDir, 7*24*time.Hour, time.Hour)
    go reportQueueDepth(bg, rq)

    // Dispatcher worker (optional)
    var disp *dispatcher.Worker
    if cfg.HTTP.RunDispatcher {
        host, _ := os.Hostname()
        disp = dispatcher.New(dispatcher.Config{
            Concurrency: cfg.HTTP.Workers,
            JobTimeout:  cfg.HTTP.JobTimeout,
            Consumer:    host,
        }, rq, pipe.Coordinator, rs, voters, results)
        disp.Start()
    }

    srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()
    _ = srv.Shutdown(ctx)
    if disp != nil {
        if err := disp.Stop(ctx); err != nil {
            log.Warn().Err(err).Msg("dispatcher did not drain in time")
        }
    }
    log.Info().Msg("shutdown complete")
}

func reportQueueDepth(ctx context.Context, q *queue.RedisQueue) {
    ticker := time.NewTicker(15 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            pending, dead, err := q.Depths(ctx)
            if err != nil { continue }
            metrics.SetQueueDepth("stream", pending)
            metrics.SetQueueDepth("dlq", dead)
        }
    }
}
