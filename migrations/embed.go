// Package migrations embeds the bridge's SQL schema files.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-display/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

// Source returns the embedded migrations for database.DB.Migrate.
func Source() database.Migrations {
	return database.Migrations{FS: files, Dir: "."}
}
