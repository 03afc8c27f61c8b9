package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// DealBuilder provides a fluent interface for creating test deals.
//
// Example usage:
//
//	// Simple creation with defaults
//	dealID := testutil.NewDeal().Build(t, db)
//
//	// Customized deal
//	dealID := testutil.NewDeal().
//	    WithName("Project Atlas").
//	    WithDealType(model.DealTypeSecondary).
//	    Build(t, db)
type DealBuilder struct {
	Name     string
	Category string
	DealType model.DealType
}

// NewDeal creates a DealBuilder with sensible defaults.
func NewDeal() *DealBuilder {
	return &DealBuilder{
		Name:     "Test Deal",
		Category: "Growth Equity",
		DealType: model.DealTypePrimary,
	}
}

// WithName sets a custom name.
func (b *DealBuilder) WithName(name string) *DealBuilder {
	b.Name = name
	return b
}

// WithDealType sets a custom deal type.
func (b *DealBuilder) WithDealType(dealType model.DealType) *DealBuilder {
	b.DealType = dealType
	return b
}

// Build inserts the deal and returns its ID.
func (b *DealBuilder) Build(t *testing.T, db *sql.DB) int {
	t.Helper()

	result, err := db.Exec(
		`INSERT INTO deal (name, category, deal_type) VALUES (?, ?, ?)`,
		b.Name, b.Category, b.DealType,
	)
	if err != nil {
		t.Fatalf("Failed to insert test deal: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read test deal ID: %v", err)
	}
	return int(id)
}

// TransactionBuilder provides a fluent interface for creating test
// transactions.
type TransactionBuilder struct {
	DealID       int
	InvestorID   int
	Date         time.Time
	Units        float64
	UnitPrice    float64
	GrossCapital float64
}

// NewTransaction creates a TransactionBuilder with sensible defaults for
// the given deal.
func NewTransaction(dealID int) *TransactionBuilder {
	return &TransactionBuilder{
		DealID:       dealID,
		InvestorID:   1,
		Date:         time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Units:        5000,
		UnitPrice:    100,
		GrossCapital: 500000,
	}
}

// WithInvestor sets a custom investor ID.
func (b *TransactionBuilder) WithInvestor(investorID int) *TransactionBuilder {
	b.InvestorID = investorID
	return b
}

// WithGrossCapital sets a custom gross capital.
func (b *TransactionBuilder) WithGrossCapital(gross float64) *TransactionBuilder {
	b.GrossCapital = gross
	return b
}

// Build inserts the transaction and returns its ID.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) int {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO "transaction" (deal_id, investor_id, date, units, unit_price, gross_capital, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.DealID, b.InvestorID, b.Date.Format("2006-01-02"),
		b.Units, b.UnitPrice, b.GrossCapital,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("Failed to insert test transaction: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read test transaction ID: %v", err)
	}
	return int(id)
}

// FormulaTemplateFixture returns an unsaved template covering the common
// deal-economics shape: structuring fee on entry, exit-to-initial unit
// price ratio on proceeds, and a discounted variant.
func FormulaTemplateFixture(code string) model.FormulaTemplate {
	return model.FormulaTemplate{
		Code:                            code,
		Name:                            "Standard Economics " + code,
		NCFormula:                       "GC * (1 - SFR)",
		InvestorProceedsFormula:         "NC * (EUP / IUP) * (1 - MFR)",
		InvestorProceedsDiscountFormula: "NC * (EUP / IUP) * (1 - MFR) * (1 - DR)",
		HasStructuring:                  true,
		IsActive:                        true,
	}
}

// SeedVariables inserts deal-level variable values for the standard
// economics fixture: gross capital, structuring fee rate, unit prices,
// discount rate, and holding period.
func SeedVariables(t *testing.T, db *sql.DB, dealID int, values map[string]float64) {
	t.Helper()

	for code, value := range values {
		_, err := db.Exec(`
			INSERT INTO deal_variable_value (deal_id, investor_id, variable_code, value, effective_date, source)
			VALUES (?, NULL, ?, ?, ?, 'manual')`,
			dealID, code, value, "2024-01-01",
		)
		if err != nil {
			t.Fatalf("Failed to seed variable %s: %v", code, err)
		}
	}
}
