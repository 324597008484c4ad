package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fxdata-system/config"
	"fxdata-system/internal/barbuild"
	"fxdata-system/internal/barcache"
	"fxdata-system/internal/coverage"
	"fxdata-system/internal/csvload"
	"fxdata-system/internal/fetch"
	"fxdata-system/internal/logger"
	"fxdata-system/internal/metrics"
	"fxdata-system/internal/query"
	"fxdata-system/internal/service"
	"fxdata-system/internal/sessions"
	sqlitestore "fxdata-system/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	slogger := logger.Init("fxupdate", slog.LevelInfo)

	cfg := config.Load()
	if cfg.DataBaseURL == "" {
		log.Fatal("[fxupdate] required env var FXDATA_BASE_URL not set")
	}
	instruments := cfg.ParseInstruments()
	if len(instruments) == 0 {
		log.Fatal("[fxupdate] no instruments configured")
	}

	startMonth, err := coverage.ParseMonth(cfg.StartMonth)
	if err != nil {
		log.Fatalf("[fxupdate] bad FXDATA_START_MONTH: %v", err)
	}

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("[fxupdate] received %v, shutting down", s)
		cancel()
	}()

	// ---- Metrics server ----
	prom := metrics.NewMetrics()
	metrics.NewServer(cfg.MetricsAddr).Start()

	// ---- Storage ----
	os.MkdirAll("data", 0o755)
	store, err := sqlitestore.Open(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[fxupdate] sqlite init failed: %v", err)
	}
	defer store.Close()

	// ---- Session tagger ----
	tagger, err := sessions.NewTagger()
	if err != nil {
		log.Fatalf("[fxupdate] tagger init failed: %v", err)
	}

	// ---- Optional Redis cache/notify ----
	cache, err := barcache.New(barcache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Printf("[fxupdate] WARNING: redis init failed: %v (continuing without redis)", err)
		cache = nil
	}
	defer cache.Close()

	// ---- Pipeline ----
	engine := barbuild.New(store, tagger)
	engine.OnBarsWritten = func(n int) { prom.BarsWritten.Add(float64(n)) }
	engine.OnRegenDuration = func(d time.Duration) { prom.RegenDur.Observe(d.Seconds()) }

	detector := coverage.NewDetector(store)
	queries := query.New(store)
	downloader := fetch.NewHTTP(cfg.DataBaseURL)
	loader := csvload.New()

	svc := service.New(store, detector, engine, queries, downloader, loader, cache, prom, slogger)

	// Different instruments update in parallel; the engine's keyed lock
	// serializes regenerations per instrument.
	var wg sync.WaitGroup
	for _, instrument := range instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			res, err := svc.Update(ctx, instrument, startMonth)
			if err != nil {
				slogger.Error("update failed", "instrument", instrument, "err", err)
				return
			}
			for _, soft := range res.SoftErrors {
				slogger.Warn("update soft error", "instrument", instrument, "detail", soft)
			}
		}(instrument)
	}
	wg.Wait()

	log.Println("[fxupdate] done")
}
