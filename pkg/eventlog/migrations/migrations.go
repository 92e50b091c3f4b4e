// Package migrations embeds the SQL migrations for the PostgreSQL event
// log backend.
package migrations

import "embed"

// FS holds the migration files, applied by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
