package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	// Create schema
	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the migrations in internal/database.
//
//nolint:funlen // Database schema DDL
func createTestSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE deal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			deal_type TEXT NOT NULL DEFAULT 'PRIMARY'
		);

		-- Transaction table (quoted because transaction is a reserved keyword)
		CREATE TABLE "transaction" (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			deal_id INTEGER NOT NULL REFERENCES deal(id),
			investor_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			units REAL NOT NULL DEFAULT 0,
			unit_price REAL NOT NULL DEFAULT 0,
			gross_capital REAL NOT NULL DEFAULT 0,
			initial_net_capital REAL,
			management_fee_percent REAL NOT NULL DEFAULT 0,
			performance_fee_percent REAL NOT NULL DEFAULT 0,
			structuring_fee_percent REAL NOT NULL DEFAULT 0,
			premium_fee_percent REAL NOT NULL DEFAULT 0,
			admin_fee REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE fee_calculator_profile (
			id TEXT PRIMARY KEY,
			deal_id INTEGER REFERENCES deal(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			deal_type TEXT NOT NULL,
			config TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE fee_application_record (
			id TEXT PRIMARY KEY,
			transaction_id INTEGER REFERENCES "transaction"(id),
			deal_id INTEGER NOT NULL REFERENCES deal(id),
			component TEXT NOT NULL,
			amount REAL NOT NULL DEFAULT 0,
			percent REAL NOT NULL DEFAULT 0,
			notes TEXT,
			applied INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE UNIQUE INDEX idx_fee_application_transaction
			ON fee_application_record(transaction_id, deal_id, component)
			WHERE transaction_id IS NOT NULL;

		CREATE UNIQUE INDEX idx_fee_application_deal
			ON fee_application_record(deal_id, component)
			WHERE transaction_id IS NULL;

		CREATE TABLE fee_legacy_import (
			id TEXT PRIMARY KEY,
			import_id TEXT NOT NULL,
			deal_id INTEGER NOT NULL,
			transaction_id INTEGER,
			component TEXT NOT NULL,
			basis TEXT,
			percent REAL,
			amount REAL,
			notes TEXT,
			source_file TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE fee_import_file (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content BLOB NOT NULL,
			uploaded_at TEXT NOT NULL
		);

		CREATE TABLE formula_template (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT,
			nc_formula TEXT NOT NULL,
			investor_proceeds_formula TEXT NOT NULL,
			investor_proceeds_discount_formula TEXT NOT NULL,
			partner_proceeds_formula TEXT,
			partner_proceeds_discount_formula TEXT,
			has_dual_mgmt_fee INTEGER NOT NULL DEFAULT 0,
			has_premium INTEGER NOT NULL DEFAULT 0,
			has_structuring INTEGER NOT NULL DEFAULT 0,
			has_other_fees INTEGER NOT NULL DEFAULT 0,
			has_partner_tranche INTEGER NOT NULL DEFAULT 0,
			mgmt_fee_split_year INTEGER,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE deal_variable_value (
			deal_id INTEGER NOT NULL REFERENCES deal(id),
			investor_id INTEGER,
			variable_code TEXT NOT NULL,
			value REAL NOT NULL,
			effective_date TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'manual'
		);

		CREATE UNIQUE INDEX idx_deal_variable_deal_scope
			ON deal_variable_value(deal_id, variable_code, effective_date)
			WHERE investor_id IS NULL;

		CREATE UNIQUE INDEX idx_deal_variable_investor_scope
			ON deal_variable_value(deal_id, investor_id, variable_code, effective_date)
			WHERE investor_id IS NOT NULL;

		CREATE TABLE deal_formula_assignment (
			id TEXT PRIMARY KEY,
			deal_id INTEGER NOT NULL REFERENCES deal(id),
			formula_template_id TEXT NOT NULL REFERENCES formula_template(id),
			effective_date TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);

		CREATE TABLE calculation_audit_log (
			id TEXT PRIMARY KEY,
			deal_id INTEGER NOT NULL REFERENCES deal(id),
			investor_id INTEGER,
			transaction_id INTEGER,
			calculation_type TEXT NOT NULL,
			formula_template_id TEXT NOT NULL,
			formula_used TEXT NOT NULL,
			variables_snapshot TEXT NOT NULL,
			result REAL NOT NULL,
			result_details TEXT NOT NULL,
			calculated_at TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// CountRows returns the number of rows in a table.
// Useful for assertions in tests.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	query := `SELECT COUNT(*) FROM "` + table + `"`
	err := db.QueryRow(query).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}

	return count
}

// AssertRowCount asserts that a table has the expected number of rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()

	actual := CountRows(t, db, table)
	if actual != expected {
		t.Errorf("Expected %d rows in %s, got %d", expected, table, actual)
	}
}
