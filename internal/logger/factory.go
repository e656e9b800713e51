// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetEngineLogger returns a logger for the objective engine core
func GetEngineLogger() zerolog.Logger {
	return GetLogger("engine")
}

// GetCascadeLogger returns a logger for cascade tracking
func GetCascadeLogger() zerolog.Logger {
	return GetLogger("cascade")
}

// GetDatabaseLogger returns a logger for graph store operations
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetOracleLogger returns a logger for scoring-oracle calls
func GetOracleLogger() zerolog.Logger {
	return GetLogger("oracle")
}

// GetValidationLogger returns a logger for redundancy/achievability validation
func GetValidationLogger() zerolog.Logger {
	return GetLogger("validation")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}
