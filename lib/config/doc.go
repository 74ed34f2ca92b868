// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Tilecast
// server.
//
// Configuration is one document naming the serving options, the data
// archives, and the styles. The file is authored as YAML or as JSONC
// (JSON extended with comments and trailing commas), selected by file
// extension. The file is the single source of truth: environment
// variables never override loaded values, and the only expansion
// performed is ${VAR} substitution inside path fields for
// portability.
//
// The typical flow:
//
//  1. Load: file bytes → Config, with path defaults derived from the
//     root and ${VAR} patterns expanded
//  2. Validate: structural checks, one joined error naming every
//     problem at once
package config
