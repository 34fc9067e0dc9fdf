// Package schemas provides embedded SQL migration files, one directory per dialect.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Migrations contains all SQL migration files.
//
//go:embed migrations/*/*.sql
var Migrations embed.FS

// Statements returns the statements of every migration for dialect, in file
// name order. Files hold plain DDL separated by semicolons.
func Statements(dialect string) ([]string, error) {
	dir := "migrations/" + dialect
	files, err := fs.Glob(Migrations, dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dialect, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	sort.Strings(files)

	var statements []string
	for _, file := range files {
		content, err := Migrations.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}
	return statements, nil
}
