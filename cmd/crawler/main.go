package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coumap/crawler/internal/browser"
	"github.com/coumap/crawler/internal/core/config"
	"github.com/coumap/crawler/internal/core/domain"
	"github.com/coumap/crawler/internal/crawl"
	"github.com/coumap/crawler/internal/geocode"
	redisclient "github.com/coumap/crawler/internal/infra/redis"
	"github.com/coumap/crawler/internal/infra/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	mode := flag.String("mode", "smoke", "Run mode: crawl, region, smoke, geocode, stats")
	province := flag.String("province", "", "Province filter (e.g. 서울)")
	district := flag.String("district", "", "District filter (e.g. 강남구)")
	dong := flag.String("dong", "", "Dong filter (e.g. 개포동)")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; the config file expands whatever is set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", slogLevel.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received signal, stopping after the current region...", "signal", sig)
		cancel()
	}()

	if cfg.Metrics.Port > 0 {
		go serveMetrics(cfg.Metrics.Port, log)
	}

	var runErr error
	switch *mode {
	case "crawl":
		runErr = runCrawl(ctx, cfg, log, "", "", "", true)
	case "region":
		if *province == "" {
			log.Error("region mode requires -province")
			os.Exit(1)
		}
		runErr = runCrawl(ctx, cfg, log, *province, *district, *dong, true)
	case "smoke":
		// Fast, visible failure beats silent recovery on a smoke run.
		runErr = runCrawl(ctx, cfg, log, "서울", "강남구", "개포동", false)
	case "geocode":
		runErr = runGeocodeTest(ctx, cfg, log)
	case "stats":
		runErr = runStats(ctx, cfg, log)
	default:
		log.Error("Unknown mode", "mode", *mode)
		os.Exit(1)
	}

	if runErr != nil {
		log.Error("Run failed", "mode", *mode, "error", runErr)
		os.Exit(1)
	}
	log.Info("Done")
}

func serveMetrics(port int, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info("Metrics listener started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("Metrics listener failed", "error", err)
	}
}

// checkpointAdapter feeds engine positions into the redis checkpoint store.
type checkpointAdapter struct {
	store *redisclient.CheckpointStore
}

func (a checkpointAdapter) Save(ctx context.Context, province, district, town string, stats domain.RunStats) error {
	return a.store.Save(ctx, &redisclient.Checkpoint{
		Province: province,
		District: district,
		Town:     town,
		Stats:    stats,
	})
}

func buildResolver(cfg *config.AppConfig, log *slog.Logger) (*geocode.Resolver, error) {
	primary, err := geocode.NewKakaoProvider(
		cfg.Geocode.KakaoAPIKey, cfg.Geocode.CallTimeout, cfg.Geocode.CallDelay)
	if err != nil {
		return nil, fmt.Errorf("kakao provider: %w", err)
	}

	var secondary geocode.Provider
	if cfg.Geocode.NaverClientID != "" {
		naver, err := geocode.NewNaverProvider(
			cfg.Geocode.NaverClientID, cfg.Geocode.NaverClientSecret,
			cfg.Geocode.CallTimeout, cfg.Geocode.CallDelay)
		if err != nil {
			return nil, fmt.Errorf("naver provider: %w", err)
		}
		secondary = naver
	} else {
		log.Warn("No naver credentials, running without a secondary provider")
	}

	return geocode.NewResolver(primary, secondary, geocode.TownMatch(cfg.Geocode.TownMatch), log), nil
}

func runCrawl(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, province, district, dong string, recovery bool) error {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate("migrations"); err != nil {
		return err
	}

	resolver, err := buildResolver(cfg, log)
	if err != nil {
		return err
	}

	// Redis side channels are optional; a crawl without them only loses the
	// failed-lookup record and the checkpoint.
	var (
		failed     crawl.FailedSink
		checkpoint crawl.Checkpointer
		summaries  *redisclient.SummaryStore
	)
	if cfg.Redis.URL != "" {
		rdb, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		failed = redisclient.NewFailedLookupSink(rdb, cfg.Crawler.RunName)
		checkpoint = checkpointAdapter{store: redisclient.NewCheckpointStore(rdb, cfg.Crawler.RunName)}
		summaries = redisclient.NewSummaryStore(rdb, cfg.Crawler.RunName)
	} else {
		log.Warn("No redis configured, failed lookups and checkpoints will not be recorded")
	}

	launcher := &browser.ChromeLauncher{Opts: browser.Options{
		Headless:  cfg.Crawler.Headless,
		UserAgent: cfg.Crawler.UserAgent,
		OpTimeout: cfg.Crawler.OpTimeout,
	}}
	session, err := launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	exec := crawl.NewExecutor(session, launcher, crawl.ExecutorConfig{
		MaxAttempts:     cfg.Crawler.MaxRecoveryAttempts,
		RecoveryEnabled: recovery,
		RecoveryPause:   cfg.Crawler.RecoveryPause,
		EntryURL:        cfg.Crawler.EntryURL,
	}, log)
	defer exec.Close()

	widget := crawl.NewWidget(exec, crawl.WidgetConfig{
		EntryURL:    cfg.Crawler.EntryURL,
		SettlePause: cfg.Crawler.SettlePause,
		ResultPause: cfg.Crawler.ResultPause,
		SlicePause:  cfg.Crawler.SlicePause,
	}, log)

	engine := crawl.NewEngine(crawl.EngineDeps{
		Widget:     widget,
		Executor:   exec,
		Resolver:   resolver,
		Regions:    postgres.NewRegionRepo(db),
		Categories: postgres.NewCategoryRepo(db),
		Stores:     postgres.NewStoreRepo(db),
		Failed:     failed,
		Checkpoint: checkpoint,
	}, crawl.EngineConfig{
		Province:   province,
		District:   district,
		Dong:       dong,
		BatchPause: cfg.Crawler.BatchPause,
	}, log)

	started := time.Now()
	stats, runErr := engine.Run(ctx)
	finished := time.Now()

	// A run always reports its statistics, even after a partial failure.
	log.Info("Crawl finished",
		"duration", finished.Sub(started).Round(time.Second),
		"regions_crawled", stats.RegionsCrawled,
		"found", stats.TotalFound,
		"saved", stats.TotalSaved,
		"primary_success", stats.PrimarySuccess,
		"secondary_success", stats.SecondarySuccess,
		"api_failed", stats.APIFailed,
		"duplicates", stats.Duplicates,
		"errors", stats.Errors,
		"recoveries", stats.RecoveryAttempts,
	)

	if summaries != nil {
		summary := &redisclient.RunSummary{
			StartedAt:  started,
			FinishedAt: finished,
			Stats:      *stats,
		}
		if runErr != nil {
			summary.Err = runErr.Error()
		}
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if err := summaries.Record(sctx, summary); err != nil {
			log.Error("Failed to record run summary", "error", err)
		}
	}

	if err := printStats(ctx, db, log); err != nil {
		log.Error("Failed to read database statistics", "error", err)
	}
	return runErr
}

// runGeocodeTest resolves a fixed set of sample merchants against the live
// providers and logs the outcome.
func runGeocodeTest(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	resolver, err := buildResolver(cfg, log)
	if err != nil {
		return err
	}

	cases := []struct{ name, category, address string }{
		{"우성", "정육점", "서울 강남구 개포동"},
		{"스타벅스", "카페", "서울 강남구 개포동 186"},
		{"맥도날드", "패스트푸드", "서울 강남구 역삼동 123"},
		{"존재하지않는가게", "기타", "서울 강남구 개포동 999"},
	}

	for i, c := range cases {
		res := resolver.Resolve(ctx, c.name, c.category, c.address)
		if res.Found {
			log.Info("Geocode hit",
				"case", i+1, "name", c.name,
				"provider", res.Provider, "source", string(res.Source),
				"lat", res.Latitude, "lon", res.Longitude,
				"place", res.PlaceName, "address", res.FinalAddress)
		} else {
			log.Warn("Geocode miss", "case", i+1, "name", c.name, "trace", res.QueryTrace)
		}
	}
	return nil
}

func runStats(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	return printStats(ctx, db, log)
}

func printStats(ctx context.Context, db *postgres.DB, log *slog.Logger) error {
	stats, err := postgres.NewStoreRepo(db).Statistics(ctx)
	if err != nil {
		return err
	}
	log.Info("Database statistics",
		"total_stores", stats.TotalStores,
		"with_coordinates", stats.WithCoordinates,
		"success_rate", fmt.Sprintf("%.2f%%", stats.SuccessRate),
	)
	for name, count := range stats.ByCategory {
		log.Info("Category", "name", name, "stores", count)
	}
	return nil
}
