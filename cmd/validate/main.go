// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
	"github.com/questweave/questweave/internal/engine/validation"
	"github.com/questweave/questweave/internal/protocol"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	asJSON := flag.Bool("json", false, "print the raw report as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: validate [-config config.yaml] [-json] <campaign-id>")
		os.Exit(2)
	}
	campaignID := flag.Arg(0)

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

	report, err := validation.NewValidator(store).Validate(context.Background(), campaignID)
	if err != nil {
		fmt.Printf("❌ Validation failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error encoding report: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(report)
	}

	if !report.Passed {
		os.Exit(1)
	}
}

func printReport(report *validation.Report) {
	fmt.Printf("🔍 Validation report for %s\n", report.CampaignID)

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

	if report.Passed {
		fmt.Println("✅ Campaign passed validation")
	} else {
		fmt.Println("❌ Campaign failed validation")
	}
}
