package service_test

import (
	"errors"
	"math"
	"testing"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
	"github.com/equinoxcap/investor-portal-backend/internal/testutil"
)

// TestCreateTransaction tests fee derivation at subscription time.
//
// WHY: The fee fields written at creation are what statements and later
// recalculations start from. A 500000 subscription on the standard
// PRIMARY schedule must land with 2% management, 1.5% structuring, a
// 0.5% admin amount, and the net captured as initial net capital.
func TestCreateTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealRepo := repository.NewDealRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	fees := service.NewFeeService(feeRepo, dealRepo, txRepo)
	transactions := service.NewTransactionService(txRepo, dealRepo, fees)

	dealID := testutil.NewDeal().Build(t, db)

	output, err := transactions.Create(service.CreateTransactionInput{
		DealID:       dealID,
		InvestorID:   1,
		Units:        5000,
		UnitPrice:    100,
		GrossCapital: 500000,
	})
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	if output.TransactionID == 0 {
		t.Fatal("Expected a persisted transaction ID")
	}
	if math.Abs(output.TotalFees-20000) > 1e-9 || math.Abs(output.NetCapital-480000) > 1e-9 {
		t.Errorf("Expected fees 20000 and net 480000, got %v / %v", output.TotalFees, output.NetCapital)
	}

	stored, err := transactions.Get(output.TransactionID)
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if math.Abs(stored.ManagementFeePercent-2.0) > 1e-9 {
		t.Errorf("Expected stored management fee 2%%, got %v", stored.ManagementFeePercent)
	}
	if math.Abs(stored.StructuringFeePercent-1.5) > 1e-9 {
		t.Errorf("Expected stored structuring fee 1.5%%, got %v", stored.StructuringFeePercent)
	}
	if math.Abs(stored.AdminFee-2500) > 1e-9 {
		t.Errorf("Expected stored admin fee 2500, got %v", stored.AdminFee)
	}
	if stored.InitialNetCapital == nil || math.Abs(*stored.InitialNetCapital-480000) > 1e-9 {
		t.Errorf("Expected initial net capital 480000, got %v", stored.InitialNetCapital)
	}

	t.Run("gross defaults to units times price", func(t *testing.T) {
		output, err := transactions.Create(service.CreateTransactionInput{
			DealID:     dealID,
			InvestorID: 2,
			Units:      1000,
			UnitPrice:  100,
		})
		if err != nil {
			t.Fatalf("Create returned unexpected error: %v", err)
		}
		if math.Abs(output.GrossCapital-100000) > 1e-9 {
			t.Errorf("Expected gross capital 100000, got %v", output.GrossCapital)
		}
	})

	t.Run("unknown deal", func(t *testing.T) {
		_, err := transactions.Create(service.CreateTransactionInput{DealID: 9999, InvestorID: 1, GrossCapital: 1000})
		if !errors.Is(err, apperrors.ErrDealNotFound) {
			t.Errorf("Expected ErrDealNotFound, got %v", err)
		}
	})
}

// TestPreviewTransaction tests that previews never persist.
func TestPreviewTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealRepo := repository.NewDealRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	fees := service.NewFeeService(feeRepo, dealRepo, txRepo)
	transactions := service.NewTransactionService(txRepo, dealRepo, fees)

	dealID := testutil.NewDeal().Build(t, db)

	output, err := transactions.Preview(service.CreateTransactionInput{
		DealID:       dealID,
		InvestorID:   1,
		GrossCapital: 500000,
	})
	if err != nil {
		t.Fatalf("Preview returned unexpected error: %v", err)
	}
	if math.Abs(output.TotalFees-20000) > 1e-9 {
		t.Errorf("Expected previewed fees 20000, got %v", output.TotalFees)
	}
	if output.TransactionID != 0 {
		t.Errorf("Expected no transaction ID on a preview, got %d", output.TransactionID)
	}
	testutil.AssertRowCount(t, db, "transaction", 0)
}

// TestRecalculate tests overwriting persisted fee fields from the current
// profile.
func TestRecalculate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealRepo := repository.NewDealRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	fees := service.NewFeeService(feeRepo, dealRepo, txRepo)
	transactions := service.NewTransactionService(txRepo, dealRepo, fees)

	dealID := testutil.NewDeal().Build(t, db)
	// Inserted raw, so its fee fields start at zero.
	txID := testutil.NewTransaction(dealID).WithGrossCapital(500000).Build(t, db)

	breakdown, err := transactions.Recalculate(txID)
	if err != nil {
		t.Fatalf("Recalculate returned unexpected error: %v", err)
	}
	if math.Abs(breakdown.TotalFees-20000) > 1e-9 {
		t.Errorf("Expected recalculated fees 20000, got %v", breakdown.TotalFees)
	}

	stored, err := transactions.Get(txID)
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if math.Abs(stored.ManagementFeePercent-2.0) > 1e-9 || math.Abs(stored.AdminFee-2500) > 1e-9 {
		t.Errorf("Expected fee fields rewritten, got %+v", stored)
	}
}

// TestRecalculateDeal tests deal-wide recalculation with per-transaction
// isolation.
func TestRecalculateDeal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealRepo := repository.NewDealRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	fees := service.NewFeeService(feeRepo, dealRepo, txRepo)
	transactions := service.NewTransactionService(txRepo, dealRepo, fees)

	dealID := testutil.NewDeal().Build(t, db)
	testutil.NewTransaction(dealID).WithGrossCapital(100000).Build(t, db)
	testutil.NewTransaction(dealID).WithGrossCapital(2000000).Build(t, db)

	updated, errs, err := transactions.RecalculateDeal(dealID)
	if err != nil {
		t.Fatalf("RecalculateDeal returned unexpected error: %v", err)
	}
	if updated != 2 || len(errs) != 0 {
		t.Errorf("Expected 2 updates with no errors, got %d updates %+v", updated, errs)
	}
}

// TestBulkCreate tests sequential bulk creation and its stop-on-error
// behavior.
func TestBulkCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealRepo := repository.NewDealRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	fees := service.NewFeeService(feeRepo, dealRepo, txRepo)
	transactions := service.NewTransactionService(txRepo, dealRepo, fees)

	dealID := testutil.NewDeal().Build(t, db)
	inputs := []service.CreateTransactionInput{
		{DealID: dealID, InvestorID: 1, GrossCapital: 100000},
		{DealID: 9999, InvestorID: 2, GrossCapital: 100000},
		{DealID: dealID, InvestorID: 3, GrossCapital: 100000},
	}

	t.Run("collects errors and continues", func(t *testing.T) {
		result, err := transactions.BulkCreate(inputs, false)
		if err != nil {
			t.Fatalf("BulkCreate returned unexpected error: %v", err)
		}
		if len(result.Created) != 2 {
			t.Errorf("Expected 2 created, got %d", len(result.Created))
		}
		if len(result.Errors) != 1 || result.Errors[0].Index != 1 {
			t.Errorf("Expected one error at index 1, got %+v", result.Errors)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		result, err := transactions.BulkCreate(inputs, true)
		if err != nil {
			t.Fatalf("BulkCreate returned unexpected error: %v", err)
		}
		if len(result.Created) != 1 {
			t.Errorf("Expected only the first input created, got %d", len(result.Created))
		}
		if len(result.Errors) != 1 {
			t.Errorf("Expected the aborting error reported, got %+v", result.Errors)
		}
	})
}
