package service_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
	"github.com/equinoxcap/investor-portal-backend/internal/testutil"
)

// TestCreateTemplate tests template validation at save time.
func TestCreateTemplate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))

	t.Run("valid template is persisted", func(t *testing.T) {
		created, err := formulas.CreateTemplate(testutil.FormulaTemplateFixture("STD"))
		if err != nil {
			t.Fatalf("CreateTemplate returned unexpected error: %v", err)
		}
		if created.ID == "" || !created.IsActive {
			t.Errorf("Expected active template with an ID, got %+v", created)
		}
	})

	t.Run("malformed formula is rejected", func(t *testing.T) {
		bad := testutil.FormulaTemplateFixture("BAD")
		bad.NCFormula = "GC * (1 -"
		_, err := formulas.CreateTemplate(bad)
		if !errors.Is(err, apperrors.ErrInvalidFormula) {
			t.Errorf("Expected ErrInvalidFormula, got %v", err)
		}
	})

	t.Run("missing required formula is rejected", func(t *testing.T) {
		bad := testutil.FormulaTemplateFixture("EMPTY")
		bad.InvestorProceedsFormula = ""
		_, err := formulas.CreateTemplate(bad)
		if !errors.Is(err, apperrors.ErrInvalidFormula) {
			t.Errorf("Expected ErrInvalidFormula, got %v", err)
		}
	})

	t.Run("partner tranche requires a partner formula", func(t *testing.T) {
		bad := testutil.FormulaTemplateFixture("PARTNER")
		bad.HasPartnerTranche = true
		_, err := formulas.CreateTemplate(bad)
		if !errors.Is(err, apperrors.ErrInvalidFormula) {
			t.Errorf("Expected ErrInvalidFormula, got %v", err)
		}
	})
}

// TestGetTemplateByCode tests code-based template lookup.
func TestGetTemplateByCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))

	created, err := formulas.CreateTemplate(testutil.FormulaTemplateFixture("STD"))
	if err != nil {
		t.Fatalf("CreateTemplate returned unexpected error: %v", err)
	}

	found, err := formulas.GetTemplateByCode("STD")
	if err != nil {
		t.Fatalf("GetTemplateByCode returned unexpected error: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("Expected template %s, got %s", created.ID, found.ID)
	}

	t.Run("unknown code", func(t *testing.T) {
		_, err := formulas.GetTemplateByCode("MISSING")
		if !errors.Is(err, apperrors.ErrFormulaTemplateNotFound) {
			t.Errorf("Expected ErrFormulaTemplateNotFound, got %v", err)
		}
	})
}

// TestAssignFormula tests the append-only assignment history.
//
// WHY: Reassigning a deal's formula must never rewrite history. The prior
// row flips inactive and a new row is appended, so audits of old
// calculations always resolve the template that produced them.
func TestAssignFormula(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))
	dealID := testutil.NewDeal().Build(t, db)

	first, err := formulas.CreateTemplate(testutil.FormulaTemplateFixture("A"))
	if err != nil {
		t.Fatalf("CreateTemplate returned unexpected error: %v", err)
	}
	second, err := formulas.CreateTemplate(testutil.FormulaTemplateFixture("B"))
	if err != nil {
		t.Fatalf("CreateTemplate returned unexpected error: %v", err)
	}

	t.Run("no assignment yet", func(t *testing.T) {
		_, err := formulas.GetDealFormula(dealID)
		if !errors.Is(err, apperrors.ErrNoFormulaAssigned) {
			t.Errorf("Expected ErrNoFormulaAssigned, got %v", err)
		}
	})

	if _, err := formulas.AssignFormula(dealID, first.ID, time.Time{}); err != nil {
		t.Fatalf("AssignFormula returned unexpected error: %v", err)
	}
	if _, err := formulas.AssignFormula(dealID, second.ID, time.Time{}); err != nil {
		t.Fatalf("Reassignment returned unexpected error: %v", err)
	}

	active, err := formulas.GetDealFormula(dealID)
	if err != nil {
		t.Fatalf("GetDealFormula returned unexpected error: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("Expected template B active after reassignment, got %s", active.Code)
	}

	history, err := formulas.GetAssignmentHistory(dealID)
	if err != nil {
		t.Fatalf("GetAssignmentHistory returned unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 history rows, got %d", len(history))
	}
	activeCount := 0
	for _, a := range history {
		if a.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("Expected exactly one active assignment, got %d", activeCount)
	}

	t.Run("unknown template", func(t *testing.T) {
		_, err := formulas.AssignFormula(dealID, "missing", time.Time{})
		if !errors.Is(err, apperrors.ErrFormulaTemplateNotFound) {
			t.Errorf("Expected ErrFormulaTemplateNotFound, got %v", err)
		}
	})
}

// TestGetDealVariables tests environment resolution precedence.
//
// WHY: The same variable can carry a deal-level value, an investor
// override, and multiple effective dates. Calculations must see the
// investor override when one exists and the latest effective value
// within each scope.
func TestGetDealVariables(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))
	dealID := testutil.NewDeal().Build(t, db)

	testutil.SeedVariables(t, db, dealID, map[string]float64{"DR": 0.10, "GC": 500000})

	insert := func(investorID *int, code string, value float64, date string) {
		t.Helper()
		_, err := db.Exec(`
			INSERT INTO deal_variable_value (deal_id, investor_id, variable_code, value, effective_date, source)
			VALUES (?, ?, ?, ?, ?, 'manual')`,
			dealID, investorID, code, value, date,
		)
		if err != nil {
			t.Fatalf("Failed to insert variable: %v", err)
		}
	}

	// Later deal-level revision of DR, plus one investor override.
	insert(nil, "DR", 0.12, "2024-06-01")
	investorID := 42
	insert(&investorID, "DR", 0.05, "2024-02-01")

	t.Run("deal level resolution", func(t *testing.T) {
		env, err := formulas.GetDealVariables(dealID, nil)
		if err != nil {
			t.Fatalf("GetDealVariables returned unexpected error: %v", err)
		}
		if env["DR"] != 0.12 {
			t.Errorf("Expected latest deal-level DR 0.12, got %v", env["DR"])
		}
		if env["GC"] != 500000 {
			t.Errorf("Expected GC 500000, got %v", env["GC"])
		}
	})

	t.Run("investor override wins", func(t *testing.T) {
		env, err := formulas.GetDealVariables(dealID, &investorID)
		if err != nil {
			t.Fatalf("GetDealVariables returned unexpected error: %v", err)
		}
		if env["DR"] != 0.05 {
			t.Errorf("Expected investor override DR 0.05, got %v", env["DR"])
		}
	})

	t.Run("other investors see deal values", func(t *testing.T) {
		other := 7
		env, err := formulas.GetDealVariables(dealID, &other)
		if err != nil {
			t.Fatalf("GetDealVariables returned unexpected error: %v", err)
		}
		if env["DR"] != 0.12 {
			t.Errorf("Expected deal-level DR 0.12 for uninvolved investor, got %v", env["DR"])
		}
	})

	t.Run("unknown deal", func(t *testing.T) {
		_, err := formulas.GetDealVariables(9999, nil)
		if !errors.Is(err, apperrors.ErrDealNotFound) {
			t.Errorf("Expected ErrDealNotFound, got %v", err)
		}
	})
}

// TestSetDealVariables tests that writes replace prior values per scope.
//
// WHY: Re-setting a variable for the same scope and effective date must
// replace the stored row. A duplicate row would make environment
// resolution depend on insertion order.
func TestSetDealVariables(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))
	dealID := testutil.NewDeal().Build(t, db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	set := func(t *testing.T, investorID *int, value float64) {
		t.Helper()
		err := formulas.SetDealVariables(dealID, []model.DealVariableValue{{
			InvestorID:    investorID,
			VariableCode:  "GC",
			Value:         value,
			EffectiveDate: date,
		}})
		if err != nil {
			t.Fatalf("SetDealVariables returned unexpected error: %v", err)
		}
	}

	t.Run("deal-level rewrite replaces the row", func(t *testing.T) {
		set(t, nil, 500000)
		set(t, nil, 525000)

		testutil.AssertRowCount(t, db, "deal_variable_value", 1)
		env, err := formulas.GetDealVariables(dealID, nil)
		if err != nil {
			t.Fatalf("GetDealVariables returned unexpected error: %v", err)
		}
		if env["GC"] != 525000 {
			t.Errorf("Expected rewritten GC 525000, got %v", env["GC"])
		}
	})

	t.Run("investor rewrite replaces only its scope", func(t *testing.T) {
		investorID := 42
		set(t, &investorID, 480000)
		set(t, &investorID, 470000)

		testutil.AssertRowCount(t, db, "deal_variable_value", 2)
		env, err := formulas.GetDealVariables(dealID, &investorID)
		if err != nil {
			t.Fatalf("GetDealVariables returned unexpected error: %v", err)
		}
		if env["GC"] != 470000 {
			t.Errorf("Expected rewritten investor GC 470000, got %v", env["GC"])
		}
	})
}

// TestCalculateDealEconomics tests the full calculation chain against a
// worked example.
//
// WHY: These figures land on investor statements. The example below is
// checkable by hand: GC 500000 at a 1.5% structuring fee gives NC 492500;
// a 1.5x unit price ratio less a 2% management fee gives proceeds 723975;
// a 10% discount gives 651577.50. Gross proceeds 738750 make total fees
// 14775, MOIC 1.47, and over a 2 year hold IRR sqrt(1.47)-1.
func TestCalculateDealEconomics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))
	dealID := testutil.NewDeal().Build(t, db)

	template, err := formulas.CreateTemplate(testutil.FormulaTemplateFixture("STD"))
	if err != nil {
		t.Fatalf("CreateTemplate returned unexpected error: %v", err)
	}
	if _, err := formulas.AssignFormula(dealID, template.ID, time.Time{}); err != nil {
		t.Fatalf("AssignFormula returned unexpected error: %v", err)
	}

	testutil.SeedVariables(t, db, dealID, map[string]float64{
		"GC":  500000,
		"SFR": 0.015,
		"EUP": 1.5,
		"IUP": 1.0,
		"MFR": 0.02,
		"DR":  0.1,
		"T":   2,
	})

	economics, err := formulas.CalculateDealEconomics(dealID, nil, nil)
	if err != nil {
		t.Fatalf("CalculateDealEconomics returned unexpected error: %v", err)
	}

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"net capital", economics.NetCapital, 492500},
		{"investor proceeds", economics.InvestorProceeds, 723975},
		{"discounted proceeds", economics.InvestorProceedsDiscounted, 651577.5},
		{"total fees", economics.TotalFees, 14775},
		{"discounted fees", economics.TotalFeesDiscounted, 87172.5},
		{"MOIC", economics.MOIC, 1.47},
		{"IRR", economics.IRR, math.Sqrt(1.47) - 1},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.expected) > 1e-6 {
			t.Errorf("Expected %s %v, got %v", c.name, c.expected, c.got)
		}
	}
	if economics.PartnerProceeds != nil {
		t.Error("Expected no partner proceeds without a partner tranche")
	}

	// Every calculation leaves an audit row with the inputs it used.
	testutil.AssertRowCount(t, db, "calculation_audit_log", 1)
	history, err := formulas.GetCalculationHistory(dealID, 10)
	if err != nil {
		t.Fatalf("GetCalculationHistory returned unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 audit row, got %d", len(history))
	}
	audit := history[0]
	if audit.CalculationType != "DEAL_ECONOMICS" {
		t.Errorf("Expected DEAL_ECONOMICS audit, got %s", audit.CalculationType)
	}
	if audit.VariablesSnapshot["GC"] != 500000 || audit.VariablesSnapshot["NC"] != 492500 {
		t.Errorf("Expected snapshot to carry inputs and derived NC, got %+v", audit.VariablesSnapshot)
	}

	t.Run("missing variable fails the calculation", func(t *testing.T) {
		bareID := testutil.NewDeal().WithName("Bare Deal").Build(t, db)
		if _, err := formulas.AssignFormula(bareID, template.ID, time.Time{}); err != nil {
			t.Fatalf("AssignFormula returned unexpected error: %v", err)
		}
		_, err := formulas.CalculateDealEconomics(bareID, nil, nil)
		if !errors.Is(err, apperrors.ErrFailedToCalculate) {
			t.Errorf("Expected ErrFailedToCalculate for empty environment, got %v", err)
		}
	})
}

// TestTestFormula tests ad-hoc formula evaluation.
func TestTestFormula(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))

	result, err := formulas.TestFormula("GC * (1 - SFR)", map[string]float64{"GC": 100000, "SFR": 0.02})
	if err != nil {
		t.Fatalf("TestFormula returned unexpected error: %v", err)
	}
	if math.Abs(result-98000) > 1e-9 {
		t.Errorf("Expected 98000, got %v", result)
	}

	t.Run("unreplaced variable", func(t *testing.T) {
		_, err := formulas.TestFormula("GC * X", map[string]float64{"GC": 100000})
		if !errors.Is(err, apperrors.ErrInvalidFormula) {
			t.Errorf("Expected ErrInvalidFormula, got %v", err)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := formulas.TestFormula("GC * ", nil)
		if !errors.Is(err, apperrors.ErrInvalidFormula) {
			t.Errorf("Expected ErrInvalidFormula, got %v", err)
		}
	})
}

// TestDeleteTemplate tests the soft delete.
func TestDeleteTemplate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	formulas := service.NewFormulaService(repository.NewFormulaRepository(db), repository.NewDealRepository(db))

	created, err := formulas.CreateTemplate(testutil.FormulaTemplateFixture("GONE"))
	if err != nil {
		t.Fatalf("CreateTemplate returned unexpected error: %v", err)
	}
	if err := formulas.DeleteTemplate(created.ID); err != nil {
		t.Fatalf("DeleteTemplate returned unexpected error: %v", err)
	}

	// The row survives for audit references but drops out of the default
	// listing.
	visible, err := formulas.ListTemplates(false)
	if err != nil {
		t.Fatalf("ListTemplates returned unexpected error: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("Expected deactivated template hidden from listing, got %d rows", len(visible))
	}
	all, err := formulas.ListTemplates(true)
	if err != nil {
		t.Fatalf("ListTemplates returned unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Errorf("Expected one inactive template in the full listing, got %+v", all)
	}

	t.Run("update does not resurrect a deleted template", func(t *testing.T) {
		renamed := all[0]
		renamed.Name = "Renamed"
		updated, err := formulas.UpdateTemplate(renamed)
		if err != nil {
			t.Fatalf("UpdateTemplate returned unexpected error: %v", err)
		}
		if updated.IsActive {
			t.Error("Expected updated template to stay inactive")
		}

		visible, err := formulas.ListTemplates(false)
		if err != nil {
			t.Fatalf("ListTemplates returned unexpected error: %v", err)
		}
		if len(visible) != 0 {
			t.Errorf("Expected template to stay out of the default listing, got %d rows", len(visible))
		}
	})
}
