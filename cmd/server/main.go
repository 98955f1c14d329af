package main

import (
	"context"
	"os"

	"fundwatch/internal/config"
	"fundwatch/internal/database"
	"fundwatch/internal/handlers"
	"fundwatch/internal/holdings"
	"fundwatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	// Load .env file if it exists, but don't fail if it's missing (e.g. in production)
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx := context.Background()

	sink, closeSink := openSink(ctx, cfg, logger)
	defer closeSink()

	defaults, _ := cfg.DefaultInputs()
	store := holdings.New(ctx, sink, defaults, logger)

	client := service.NewEastmoneyClient(logger,
		service.WithEstimateBaseURL(cfg.Upstream.EstimateBaseURL),
		service.WithDetailBaseURL(cfg.Upstream.DetailBaseURL),
		service.WithSearchBaseURL(cfg.Upstream.SearchBaseURL),
		service.WithTimeout(cfg.FetchTimeout()),
		service.WithRateLimit(cfg.Upstream.RateLimit),
		service.WithProxy(cfg.Upstream.Proxy),
	)
	funds := service.NewFundService(client, client, cfg.Upstream.Concurrency, logger)

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	h := handlers.NewHandler(store, funds, logger)
	rg := handlers.NewRouter(h, cfg.Server.AllowOrigins, logger)

	logger.Infof("server starting on :%s", cfg.Server.Port)
	if err := rg.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// openSink picks Postgres when a URL is configured and the JSON file
// otherwise.
func openSink(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (holdings.Sink, func()) {
	if cfg.Holdings.PostgresURL == "" {
		logger.Infof("holdings file: %s", cfg.Holdings.File)
		return database.NewFileSink(cfg.Holdings.File, logger), func() {}
	}

	db, err := database.Open(cfg.Holdings.PostgresURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	sink := database.NewPostgresSink(db, logger)
	if err := sink.EnsureSchema(ctx); err != nil {
		logger.Fatalf("db schema: %v", err)
	}
	logger.Info("holdings stored in postgres")
	return sink, func() { db.Close() }
}
