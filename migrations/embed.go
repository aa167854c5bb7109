// Package migrations holds the versioned MySQL schema applied by cmd/migrate.
// SQLite deployments are migrated by gorm at startup instead.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
