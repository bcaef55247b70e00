package db

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"predictions/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one versioned schema script. Version is the numeric filename
// prefix; files apply in lexical order, each in its own transaction together
// with its ledger row.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

func Migrate(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return MigrateFS(db.Gorm, migrationFS, "migrations")
}

func MigrateFS(gdb *gorm.DB, fsys fs.FS, dir string) error {
	migrations, err := LoadMigrations(fsys, dir)
	if err != nil {
		return err
	}

	// The ledger table must exist before the first lookup; creating it is
	// idempotent and not itself a versioned migration.
	if err := gdb.Exec(
		`CREATE TABLE IF NOT EXISTS schema_migrations (version text PRIMARY KEY, applied_at timestamptz NOT NULL)`,
	).Error; err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	var applied []models.SchemaMigration
	if err := gdb.Find(&applied).Error; err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, m := range applied {
		done[m.Version] = struct{}{}
	}

	for _, m := range migrations {
		if _, ok := done[m.Version]; ok {
			continue
		}
		err := gdb.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range SplitStatements(m.SQL) {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return tx.Create(&models.SchemaMigration{
				Version:   m.Version,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, ok := migrationVersion(name)
		if !ok {
			return nil, fmt.Errorf("migration file %q has no numeric version prefix", name)
		}
		raw, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     string(raw),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})

	seen := make(map[string]string, len(migrations))
	for _, m := range migrations {
		if prev, ok := seen[m.Version]; ok {
			return nil, fmt.Errorf("duplicate migration version %s (%s, %s)", m.Version, prev, m.Name)
		}
		seen[m.Version] = m.Name
	}
	return migrations, nil
}

// migrationVersion extracts the leading digits of "0001_create_tables.sql".
func migrationVersion(name string) (string, bool) {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}
	return name[:i], true
}

// SplitStatements breaks a script on top-level semicolons so each statement
// can run through the extended query protocol. Migration files here are plain
// DDL; dollar-quoted bodies are not supported.
func SplitStatements(script string) []string {
	parts := strings.Split(script, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		lines := strings.Split(p, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if strings.HasPrefix(strings.TrimSpace(l), "--") {
				continue
			}
			kept = append(kept, l)
		}
		s := strings.TrimSpace(strings.Join(kept, "\n"))
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
