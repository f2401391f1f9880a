// Package migrations embeds the schema for each supported SQL dialect.
package migrations

import "embed"

// FS holds one directory per dialect, named after config.Dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
