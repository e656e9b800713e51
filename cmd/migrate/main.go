// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/engine/database"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	fmt.Println("🚀 Starting database migration...")

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

	fmt.Printf("📦 Connected to %s database\n", cfg.Database.Driver)

	if err := store.AutoMigrate(); err != nil {
		fmt.Printf("❌ Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Migration completed")

	if err := store.ValidateSchema(); err != nil {
		fmt.Printf("⚠️  Warning: Schema validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Schema validated")
}
