// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/questweave/questweave/internal/cli"
	"github.com/questweave/questweave/internal/common"
	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/cascade"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/oracle"
	"github.com/questweave/questweave/internal/engine/progression"
	"github.com/questweave/questweave/internal/engine/query"
	"github.com/questweave/questweave/internal/engine/rubric"
	"github.com/questweave/questweave/internal/engine/validation"
	"github.com/questweave/questweave/internal/logger"
	"github.com/questweave/questweave/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	campaignDir := flag.String("campaigns", "campaigns", "directory of campaign definition files loaded at startup")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Msg("Starting questweave API server")

	store, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error connecting to database")
		os.Exit(1)
	}
	defer store.Close()

	if err := store.ValidateSchema(); err != nil {
		mainLog.Error().Err(err).Msg("Schema validation failed, run the migrate tool first")
		os.Exit(1)
	}

	eventChan := make(chan common.Event, 100)

	rubrics := rubric.NewRegistry()
	importer := cli.NewImporter(store, rubrics).WithEvents(eventChan)
	importCampaigns(importer, *campaignDir)

	prog, err := progression.NewTracker(store, &cfg.Progression)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error creating progression tracker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scorer := oracle.NewHTTPClient(&cfg.Oracle)
	tracker := cascade.NewTracker(store, rubrics, scorer, prog, eventChan, &cfg.Cascade)

	svc := query.NewService(store, validation.NewValidator(store), prog)
	handlers := server.NewHandlers(svc, tracker, importer, cfg.Progression.FocusDimensions)
	srv := server.New(&cfg.Server, eventChan, handlers)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			mainLog.Error().Err(err).Msg("Server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	mainLog.Info().Msg("API server shut down")
}

// importCampaigns loads every campaign definition in dir so the rubric
// registry is populated before gameplay. Nodes may already be in the store
// from an earlier seed run, but rubric-scored actions fail until their
// definitions are loaded into memory.
func importCampaigns(importer *cli.Importer, dir string) {
	mainLog := logger.GetLogger("main")

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil || len(files) == 0 {
		mainLog.Warn().Str("dir", dir).Msg("No campaign definitions found, rubric registry starts empty")
		return
	}

	for _, path := range files {
		cf, err := cli.LoadCampaignFile(path)
		if err != nil {
			mainLog.Error().Err(err).Str("path", path).Msg("Skipping invalid campaign definition")
			continue
		}
		if _, err := importer.Import(context.Background(), cf); err != nil {
			mainLog.Warn().Err(err).Str("campaign_id", cf.Campaign.ID).Msg("Campaign imported with validation failures")
			continue
		}
		mainLog.Info().Str("campaign_id", cf.Campaign.ID).Str("path", path).Msg("Campaign loaded")
	}
}
