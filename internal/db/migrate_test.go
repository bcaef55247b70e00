package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsOrdering(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0010_later.sql":  {Data: []byte("CREATE TABLE later (id int);")},
		"migrations/0001_first.sql":  {Data: []byte("CREATE TABLE first (id int);")},
		"migrations/0002_second.sql": {Data: []byte("CREATE TABLE second (id int);")},
		"migrations/README.md":       {Data: []byte("not a migration")},
	}
	migrations, err := LoadMigrations(fsys, "migrations")
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("migrations = %d, want 3", len(migrations))
	}
	for i, want := range []string{"0001", "0002", "0010"} {
		if migrations[i].Version != want {
			t.Fatalf("migration %d version = %s, want %s", i, migrations[i].Version, want)
		}
	}
	if !strings.Contains(migrations[0].SQL, "CREATE TABLE first") {
		t.Fatalf("migration 0 SQL = %q", migrations[0].SQL)
	}
}

func TestLoadMigrationsRejectsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/0001_b.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := LoadMigrations(fsys, "migrations"); err == nil {
		t.Fatal("duplicate version accepted")
	}
}

func TestLoadMigrationsRejectsMissingPrefix(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/create_tables.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := LoadMigrations(fsys, "migrations"); err == nil {
		t.Fatal("file without version prefix accepted")
	}
}

func TestMigrationVersion(t *testing.T) {
	cases := []struct {
		name    string
		version string
		ok      bool
	}{
		{"0001_core_tables.sql", "0001", true},
		{"42.sql", "42", true},
		{"core_tables.sql", "", false},
		{"_0001.sql", "", false},
	}
	for _, c := range cases {
		version, ok := migrationVersion(c.name)
		if ok != c.ok || version != c.version {
			t.Errorf("migrationVersion(%s) = (%q, %t), want (%q, %t)", c.name, version, ok, c.version, c.ok)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- core tables
CREATE TABLE markets (
    id text PRIMARY KEY
);

CREATE INDEX idx_markets_owner ON markets (id);
`
	stmts := SplitStatements(script)
	if len(stmts) != 2 {
		t.Fatalf("statements = %d, want 2: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE markets") {
		t.Fatalf("first statement = %q", stmts[0])
	}
	if strings.Contains(stmts[0], "--") {
		t.Fatalf("comment survived: %q", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "CREATE INDEX") {
		t.Fatalf("second statement = %q", stmts[1])
	}
}

func TestSplitStatementsEmpty(t *testing.T) {
	if got := SplitStatements("-- nothing but comments\n"); len(got) != 0 {
		t.Fatalf("statements = %q, want none", got)
	}
	if got := SplitStatements(";;;"); len(got) != 0 {
		t.Fatalf("statements = %q, want none", got)
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	migrations, err := LoadMigrations(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations")
	}
	for _, m := range migrations {
		if len(SplitStatements(m.SQL)) == 0 {
			t.Errorf("migration %s has no statements", m.Name)
		}
	}
}
