package service_test

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/fernet/fernet-go"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
	"github.com/equinoxcap/investor-portal-backend/internal/testutil"
)

const importHeader = "deal_id,transaction_id,component,basis,percent,amount,notes,source_file"

// TestImportCSV tests validation and staging of uploaded fee CSVs.
func TestImportCSV(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	imports := service.NewImportService(feeRepo, txRepo, nil)

	t.Run("valid upload is staged with a preview", func(t *testing.T) {
		content := importHeader + "\n" +
			"1001,,MANAGEMENT,GROSS_CAPITAL,2.0,,note,legacy.csv\n" +
			"1001,,STRUCTURING,,,7500,,legacy.csv\n"

		result, err := imports.ImportCSV("legacy.csv", content)
		if err != nil {
			t.Fatalf("ImportCSV returned unexpected error: %v", err)
		}
		if !result.Valid || result.ImportID == "" {
			t.Fatalf("Expected valid staged import, got %+v", result)
		}
		if result.RowCount != 2 || len(result.Preview) != 2 {
			t.Errorf("Expected 2 rows with full preview, got %+v", result)
		}
		testutil.AssertRowCount(t, db, "fee_legacy_import", 2)
	})

	t.Run("invalid upload reports errors and stages nothing", func(t *testing.T) {
		result, err := imports.ImportCSV("bad.csv", "deal_id,basis\n1001,GROSS_CAPITAL\n")
		if err != nil {
			t.Fatalf("ImportCSV returned unexpected error: %v", err)
		}
		if result.Valid || result.ImportID != "" {
			t.Fatalf("Expected invalid result without an import ID, got %+v", result)
		}
		if len(result.Errors) == 0 || result.ErrorSummary == "" {
			t.Error("Expected header validation errors with a summary")
		}
		if result.SuggestedMapping["deal_id"] != "deal_id" {
			t.Errorf("Expected a header mapping suggestion, got %+v", result.SuggestedMapping)
		}
	})
}

// TestApplyImportedFees tests the all-or-nothing apply step.
//
// WHY: Applying an import rewrites the fee fields investor statements are
// built from. The apply must update the transaction, record the audit
// trail, and clear staging in one transaction; a dry run must write
// nothing.
func TestApplyImportedFees(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	imports := service.NewImportService(feeRepo, txRepo, nil)

	dealID := testutil.NewDeal().Build(t, db)
	txID := testutil.NewTransaction(dealID).WithGrossCapital(500000).Build(t, db)

	clearStaging := func(t *testing.T) {
		t.Helper()
		if _, err := db.Exec(`DELETE FROM fee_legacy_import`); err != nil {
			t.Fatalf("Failed to clear staging: %v", err)
		}
	}

	stage := func(t *testing.T) string {
		t.Helper()
		clearStaging(t)
		content := importHeader + "\n" +
			strings.Join([]string{
				intRow(dealID, txID, "MANAGEMENT", "2.0", ""),
				intRow(dealID, txID, "ADMIN", "", "2500"),
			}, "\n") + "\n"
		result, err := imports.ImportCSV("legacy.csv", content)
		if err != nil || !result.Valid {
			t.Fatalf("Staging failed: %v %+v", err, result)
		}
		return result.ImportID
	}

	t.Run("dry run writes nothing", func(t *testing.T) {
		importID := stage(t)

		result, err := imports.ApplyImportedFees(importID, true)
		if err != nil {
			t.Fatalf("ApplyImportedFees returned unexpected error: %v", err)
		}
		if !result.DryRun || result.RecordsApplied != 2 {
			t.Fatalf("Expected dry-run preview of 2 records, got %+v", result)
		}

		testutil.AssertRowCount(t, db, "fee_application_record", 0)
		testutil.AssertRowCount(t, db, "fee_legacy_import", 2)

		tx, err := txRepo.GetTransaction(txID)
		if err != nil {
			t.Fatalf("GetTransaction returned unexpected error: %v", err)
		}
		if tx.ManagementFeePercent != 0 || tx.AdminFee != 0 {
			t.Errorf("Dry run must not touch transaction fee fields, got %+v", tx)
		}
	})

	t.Run("apply updates fees and clears staging", func(t *testing.T) {
		importID := stage(t)

		result, err := imports.ApplyImportedFees(importID, false)
		if err != nil {
			t.Fatalf("ApplyImportedFees returned unexpected error: %v", err)
		}
		if result.RecordsApplied != 2 {
			t.Fatalf("Expected 2 records applied, got %+v", result)
		}

		tx, err := txRepo.GetTransaction(txID)
		if err != nil {
			t.Fatalf("GetTransaction returned unexpected error: %v", err)
		}
		if math.Abs(tx.ManagementFeePercent-2.0) > 1e-9 {
			t.Errorf("Expected management fee percent 2.0, got %v", tx.ManagementFeePercent)
		}
		if math.Abs(tx.AdminFee-2500) > 1e-9 {
			t.Errorf("Expected admin fee 2500, got %v", tx.AdminFee)
		}

		testutil.AssertRowCount(t, db, "fee_application_record", 2)
		testutil.AssertRowCount(t, db, "fee_legacy_import", 0)
	})

	t.Run("deal-level row applies without a transaction", func(t *testing.T) {
		apply := func(t *testing.T) {
			t.Helper()
			clearStaging(t)
			content := importHeader + "\n" +
				intRow(dealID, txID, "MANAGEMENT", "2.0", "") + "\n" +
				strconv.Itoa(dealID) + ",,ADMIN,,,1200,deal-wide charge,legacy.csv\n"
			staged, err := imports.ImportCSV("legacy.csv", content)
			if err != nil || !staged.Valid {
				t.Fatalf("Staging failed: %v %+v", err, staged)
			}
			result, err := imports.ApplyImportedFees(staged.ImportID, false)
			if err != nil {
				t.Fatalf("ApplyImportedFees returned unexpected error: %v", err)
			}
			if result.RecordsApplied != 2 {
				t.Fatalf("Expected 2 records applied, got %+v", result)
			}
		}
		apply(t)

		records, err := feeRepo.GetApplicationRecords(dealID)
		if err != nil {
			t.Fatalf("GetApplicationRecords returned unexpected error: %v", err)
		}
		var dealLevel *model.FeeApplicationRecord
		for i := range records {
			if records[i].TransactionID == nil {
				dealLevel = &records[i]
			}
		}
		if dealLevel == nil {
			t.Fatal("Expected a persisted record with no transaction")
		}
		if dealLevel.Component != model.ComponentAdmin || math.Abs(dealLevel.Amount-1200) > 1e-9 {
			t.Errorf("Unexpected deal-level record: %+v", dealLevel)
		}

		// Re-applying the same rows upserts both record shapes instead of
		// duplicating them.
		before := testutil.CountRows(t, db, "fee_application_record")
		apply(t)
		testutil.AssertRowCount(t, db, "fee_application_record", before)
	})

	t.Run("unknown transaction aborts the whole apply", func(t *testing.T) {
		clearStaging(t)
		content := importHeader + "\n" +
			intRow(dealID, txID, "PERFORMANCE", "20.0", "") + "\n" +
			intRow(dealID, 9999, "MANAGEMENT", "2.0", "") + "\n"
		staged, err := imports.ImportCSV("legacy.csv", content)
		if err != nil || !staged.Valid {
			t.Fatalf("Staging failed: %v %+v", err, staged)
		}

		_, err = imports.ApplyImportedFees(staged.ImportID, false)
		if !errors.Is(err, apperrors.ErrTransactionNotFound) {
			t.Fatalf("Expected ErrTransactionNotFound, got %v", err)
		}

		// Nothing from the failed apply may land, and staging survives
		// for correction and retry.
		tx, _ := txRepo.GetTransaction(txID)
		if tx.PerformanceFeePercent != 0 {
			t.Errorf("Failed apply must not write fee fields, got %+v", tx)
		}
		testutil.AssertRowCount(t, db, "fee_legacy_import", 2)
	})

	t.Run("empty staging is rejected", func(t *testing.T) {
		_, err := imports.ApplyImportedFees("b2c3d8aa-0000-0000-0000-000000000000", false)
		if !errors.Is(err, apperrors.ErrImportNotValid) {
			t.Errorf("Expected ErrImportNotValid, got %v", err)
		}
	})
}

// TestImportFileArchive tests the encrypted at-rest archive round trip.
func TestImportFileArchive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txRepo := repository.NewTransactionRepository(db)
	feeRepo := repository.NewFeeRepository(db)

	var key fernet.Key
	if err := key.Generate(); err != nil {
		t.Fatalf("Failed to generate archive key: %v", err)
	}
	imports := service.NewImportService(feeRepo, txRepo, &key)

	content := importHeader + "\n1001,,MANAGEMENT,,2.0,,,\n"
	result, err := imports.ImportCSV("legacy.csv", content)
	if err != nil || !result.Valid {
		t.Fatalf("ImportCSV failed: %v %+v", err, result)
	}

	// The stored blob must not be the plaintext.
	var stored []byte
	if err := db.QueryRow(`SELECT content FROM fee_import_file WHERE id = ?`, result.ImportID).Scan(&stored); err != nil {
		t.Fatalf("Failed to read archived file: %v", err)
	}
	if strings.Contains(string(stored), "MANAGEMENT") {
		t.Error("Archived file content is not encrypted")
	}

	filename, plaintext, err := imports.GetImportFile(result.ImportID)
	if err != nil {
		t.Fatalf("GetImportFile returned unexpected error: %v", err)
	}
	if filename != "legacy.csv" || string(plaintext) != content {
		t.Errorf("Archive round trip mismatch: %s %q", filename, plaintext)
	}
}

func intRow(dealID, txID int, component, percent, amount string) string {
	return strings.Join([]string{
		strconv.Itoa(dealID), strconv.Itoa(txID), component, "", percent, amount, "", "legacy.csv",
	}, ",")
}
