package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fyssion/GlaDOS/internal/bot"
	"github.com/Fyssion/GlaDOS/internal/config"
	"github.com/Fyssion/GlaDOS/internal/msgcache"
	"github.com/Fyssion/GlaDOS/internal/notify"
	"github.com/Fyssion/GlaDOS/internal/stats"
	"github.com/Fyssion/GlaDOS/internal/storage"
	"github.com/Fyssion/GlaDOS/internal/timers"
	"github.com/Fyssion/GlaDOS/internal/watch"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	index := watch.New()
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	words, err := store.DistinctWords(startupCtx)
	cancelStartup()
	if err != nil {
		logger.Fatal("word index load failed", zap.Error(err))
	}
	index.Load(words)

	cache := msgcache.New(cfg.Cache.PerChannelCapacity)
	assembler := notify.NewAssembler(cache, notify.AssemblerConfig{
		BeforeCount: cfg.Context.BeforeCount,
		AfterCount:  cfg.Context.AfterCount,
		WaitTimeout: time.Duration(cfg.Context.WaitTimeoutSeconds) * time.Second,
		TruncateAt:  cfg.Context.TruncateLength,
	})
	scheduler := timers.New(store, logger, timers.Config{
		PollInterval: time.Duration(cfg.Timers.PollIntervalSeconds) * time.Second,
		ShortDelay:   time.Duration(cfg.Timers.ShortDelaySeconds) * time.Second,
		WakeHorizon:  time.Duration(cfg.Timers.WakeHorizonDays) * 24 * time.Hour,
	})
	statsSvc := stats.New(store)

	botSvc, err := bot.New(cfg, logger, store, index, cache, assembler, scheduler, statsSvc)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(runCtx)
		close(schedulerDone)
	}()

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.Int("words", index.Len()))

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	cancelRun()
	select {
	case <-schedulerDone:
	case <-ctx.Done():
	}
	botSvc.Close(ctx)
}
