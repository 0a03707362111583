package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surveycash/surveycash-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded, migrate.EmbeddedDir); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestLedgerMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"*_create_accounts.sql": {
			"CHECK (balance_cents >= 0)",
			"CHECK (pending_cents >= 0)",
			"DROP TABLE IF EXISTS accounts",
		},
		"*_create_reward_events.sql": {
			"ON reward_events (trans_id, type)",
			"CHECK (status IN ('credited', 'reversed'))",
		},
		"*_create_withdrawals.sql": {
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_withdrawals_open_user",
			"WHERE status IN ('pending', 'processing')",
			"CHECK (amount_cents > 0)",
		},
		"*_create_ledger_events.sql": {
			"CREATE TABLE IF NOT EXISTS ledger_events",
		},
	}

	for pattern, checks := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) == 0 {
			t.Fatalf("no migration file matching %s", pattern)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		content := string(data)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", matches[0], sub)
			}
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationNeverReusesAVersion(t *testing.T) {
	dir := t.TempDir()
	future := filepath.Join(dir, "29991231235959_far_future.sql")
	if err := os.WriteFile(future, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("seed migration: %v", err)
	}

	path, err := migrate.CreateSQLMigration(dir, "next")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "30000101000000_next.sql" {
		t.Fatalf("expected version after the newest file, got %s", filepath.Base(path))
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("seed migration: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}
