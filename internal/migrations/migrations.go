package migrations

import (
	"fmt"
	"os"
	"path/filepath"
)

// MigrationsDir points at the SQL schema files. Tests override it with an
// absolute path since they run from a temp working directory.
var MigrationsDir = "scripts/migrations"

const initialSchemaFile = "001_initial_schema.sql"

// GetInitialSchema loads the initial schema, probing parent directories
// so the binary works from the repo root and from cmd/ during development.
func GetInitialSchema() (string, error) {
	searchPaths := []string{
		filepath.Join(MigrationsDir, initialSchemaFile),
		filepath.Join("..", MigrationsDir, initialSchemaFile),
		filepath.Join("..", "..", MigrationsDir, initialSchemaFile),
	}

	for _, path := range searchPaths {
		if content, err := os.ReadFile(path); err == nil {
			return string(content), nil
		}
	}
	return "", fmt.Errorf("could not find schema file in any location")
}
