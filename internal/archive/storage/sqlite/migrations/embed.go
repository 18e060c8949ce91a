package migrations

import "embed"

// FS contains embedded SQLite migrations for hot-tier save storage.
//
//go:embed *.sql
var FS embed.FS
