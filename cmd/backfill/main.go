package main

import (
	"context"
	"flag"
	"os"

	"fundwatch/internal/config"
	"fundwatch/internal/database"
	"fundwatch/internal/holdings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// backfill adds every holding listed in a YAML or JSON file to the
// configured store. Holdings already present are left untouched.
func main() {
	seedPath := flag.String("file", "seed_funds.yaml", "YAML or JSON list of {code,name,cost,share}")
	reset := flag.Bool("clear", false, "remove all holdings before seeding")
	flag.Parse()

	logger := logrus.New()
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		logger.Fatalf("read seed file: %v", err)
	}
	var seed []config.DefaultHolding
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Fatalf("parse seed file: %v", err)
	}
	inputs, err := config.ToInputs(seed)
	if err != nil {
		logger.Fatalf("invalid seed file: %v", err)
	}

	ctx := context.Background()
	var sink holdings.Sink
	if cfg.Holdings.PostgresURL != "" {
		db, err := database.Open(cfg.Holdings.PostgresURL)
		if err != nil {
			logger.Fatalf("failed to connect to db: %v", err)
		}
		defer db.Close()
		pg := database.NewPostgresSink(db, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatalf("db schema: %v", err)
		}
		sink = pg
	} else {
		sink = database.NewFileSink(cfg.Holdings.File, logger)
	}

	store := holdings.New(ctx, sink, nil, logger)
	if *reset {
		if _, err := store.Clear(ctx); err != nil {
			logger.Fatalf("clear holdings: %v", err)
		}
	}

	added, skipped := 0, 0
	for _, in := range inputs {
		_, duplicate, err := store.Add(ctx, in)
		if err != nil {
			logger.Warnf("could not add %s: %v", *in.Code, err)
			skipped++
			continue
		}
		if duplicate {
			skipped++
			continue
		}
		added++
	}
	logger.Infof("backfill done: %d added, %d skipped, %d held", added, skipped, store.Len())
}
