// Package migrations embeds SQL migration files into the binary.
//
// Each dialect has its own folder (sqlite/, postgres/) with the same versions.
package migrations

import (
	"embed"

	"github.com/nerrad567/secretgate/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
