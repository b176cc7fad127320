package main

import (
	"log"
	"os"

	"github.com/lumenmed/lumen/internal/api"
	"github.com/lumenmed/lumen/internal/config"
	"github.com/lumenmed/lumen/internal/engine"
	"github.com/lumenmed/lumen/internal/eventlog"
	"github.com/lumenmed/lumen/internal/pipeline"
	"github.com/lumenmed/lumen/internal/provider"
	"github.com/lumenmed/lumen/internal/provider/anthropic"
	"github.com/lumenmed/lumen/internal/provider/entrez"
	"github.com/lumenmed/lumen/internal/provider/fetch"
	"github.com/lumenmed/lumen/internal/provider/openai"
	"github.com/lumenmed/lumen/internal/store"
)

const searchLimit = 10

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("lumen: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"event_log", cfg.EventLog,
		"completion", cfg.Completion,
	)

	messages, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer messages.Close()

	var elog eventlog.Store
	if cfg.EventLog == "sqlite" {
		elog, err = eventlog.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
	} else {
		elog = eventlog.NewMemoryStore()
	}
	defer elog.Close()

	var llm provider.Completion
	if cfg.Completion == "anthropic" {
		llm = anthropic.New()
	} else {
		llm = openai.New()
	}

	resolver, err := fetch.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to create resolver: %v", err)
	}

	registry := pipeline.Defaults(llm, entrez.New(), resolver, searchLimit)

	eng := engine.New(elog, registry, messages, func(o *engine.Options) {
		o.Retention = cfg.Retention
		o.Titler = llm
		o.Logger = logger
	})

	srv := api.NewServer(cfg.ListenAddr, eng, messages, llm, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
