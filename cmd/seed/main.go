// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/questweave/questweave/internal/cli"
	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/rubric"
	"github.com/questweave/questweave/internal/engine/validation"
	"github.com/questweave/questweave/internal/protocol"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: seed [-config config.yaml] <campaign.yaml> [more.yaml ...]")
		os.Exit(2)
	}

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		fmt.Printf("❌ Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.ValidateSchema(); err != nil {
		fmt.Printf("❌ Schema validation failed, run the migrate tool first: %v\n", err)
		os.Exit(1)
	}

	importer := cli.NewImporter(store, rubric.NewRegistry())
	failed := false

	for _, path := range flag.Args() {
		fmt.Printf("🚀 Importing %s...\n", path)

		cf, err := cli.LoadCampaignFile(path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed = true
			continue
		}

		report, err := importer.Import(context.Background(), cf)
		if report != nil {
			printReport(report)
		}
		switch {
		case errors.Is(err, cli.ErrCampaignInvalid):
			fmt.Printf("⚠️  Campaign %s imported but failed validation, fix the issues and re-run\n", cf.Campaign.ID)
			failed = true
		case err != nil:
			fmt.Printf("❌ Import failed: %v\n", err)
			failed = true
		default:
			fmt.Printf("✅ Campaign %s imported and validated\n", cf.Campaign.ID)
		}
	}

	if failed {
		os.Exit(1)
	}
}

func printReport(report *validation.Report) {
	printIssues := func(label string, issues []protocol.ValidationIssue) {
		for _, issue := range issues {
			fmt.Printf("   %s [%s] %s: %s\n", label, issue.Check, issue.SubjectID, issue.Message)
			if issue.Recommendation != "" {
				fmt.Printf("      ↳ %s\n", issue.Recommendation)
			}
		}
	}
	printIssues("❌", report.Errors)
	printIssues("⚠️ ", report.Warnings)

	fmt.Printf("   📊 Resources: %d total, %d redundant, %d single-path, %d unreachable (%.0f%% redundancy)\n",
		report.Stats.ResourcesTotal, report.Stats.ResourcesRedundant,
		report.Stats.ResourcesSinglePath, report.Stats.ResourcesUnreachable,
		report.Stats.RedundancyPercent)
	fmt.Printf("   📊 Objectives: %d of %d reachable\n",
		report.Stats.ObjectivesReachable, report.Stats.ObjectivesTotal)
}
