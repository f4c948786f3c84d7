// Package migrations embeds the SQL migrations for the Postgres kv backend.
package migrations

import "embed"

// FS holds all *.sql migration files, for goose.NewProvider.
//
//go:embed *.sql
var FS embed.FS
