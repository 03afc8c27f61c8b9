package service

import (
	"fmt"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/feeengine"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
)

// importPreviewRows is how many validated rows an import response previews.
const importPreviewRows = 5

// ImportService handles legacy fee CSV uploads: validation, staging,
// encrypted archiving of the raw file, and the all-or-nothing apply step.
type ImportService struct {
	feeRepo   *repository.FeeRepository
	txRepo    *repository.TransactionRepository
	fernetKey *fernet.Key
}

// NewImportService creates a new ImportService. A nil fernetKey disables
// the encrypted file archive; staging and apply still work.
func NewImportService(feeRepo *repository.FeeRepository, txRepo *repository.TransactionRepository, fernetKey *fernet.Key) *ImportService {
	return &ImportService{feeRepo: feeRepo, txRepo: txRepo, fernetKey: fernetKey}
}

// ImportResult is the outcome of validating and staging a CSV upload.
// On an invalid upload ErrorSummary holds the grouped, display-ready error
// text and SuggestedMapping proposes canonical names for the file's headers.
type ImportResult struct {
	ImportID         string                     `json:"importId,omitempty"`
	Valid            bool                       `json:"valid"`
	RowCount         int                        `json:"rowCount"`
	Preview          []model.CSVImportRow       `json:"preview,omitempty"`
	Errors           []model.CSVValidationError `json:"errors,omitempty"`
	ErrorSummary     string                     `json:"errorSummary,omitempty"`
	SuggestedMapping map[string]string          `json:"suggestedMapping,omitempty"`
}

// ImportCSV validates an uploaded fee CSV and stages the valid rows under a
// new import ID. Validation failures are reported in the result, not as an
// error; only infrastructure failures return an error. The raw file is
// archived encrypted when an archive key is configured.
func (s *ImportService) ImportCSV(filename, content string) (ImportResult, error) {
	validation := feeengine.NewCSVValidator().ValidateCSV(content)

	result := ImportResult{
		Valid:    validation.Valid,
		RowCount: len(validation.Rows),
		Errors:   validation.Errors,
	}
	if !validation.Valid {
		result.ErrorSummary = feeengine.FormatErrors(validation.Errors)
		if len(validation.Headers) > 0 {
			result.SuggestedMapping = feeengine.SuggestMapping(validation.Headers)
		}
		return result, nil
	}

	result.ImportID = uuid.NewString()
	if err := s.feeRepo.StageImport(result.ImportID, validation.Rows); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToImportFees, err)
	}

	if s.fernetKey != nil {
		encrypted, err := fernet.EncryptAndSign([]byte(content), s.fernetKey)
		if err != nil {
			return ImportResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToImportFees, err)
		}
		if err := s.feeRepo.SaveImportFile(result.ImportID, filename, encrypted); err != nil {
			return ImportResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToImportFees, err)
		}
	}

	if len(validation.Rows) > importPreviewRows {
		result.Preview = validation.Rows[:importPreviewRows]
	} else {
		result.Preview = validation.Rows
	}

	return result, nil
}

// ApplyResult is the outcome of applying (or dry-running) a staged import.
type ApplyResult struct {
	ImportID       string                       `json:"importId"`
	DryRun         bool                         `json:"dryRun"`
	RecordsApplied int                          `json:"recordsApplied"`
	Records        []model.FeeApplicationRecord `json:"records"`
}

// ApplyImportedFees turns the staged rows of an import into persisted fee
// application records and overwrites the fee fields of every referenced
// transaction. The whole apply commits atomically and clears the staging
// rows; with dryRun set, the computed records are returned and nothing is
// written.
func (s *ImportService) ApplyImportedFees(importID string, dryRun bool) (ApplyResult, error) {
	staged, err := s.feeRepo.GetStagedRows(importID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToApplyFees, err)
	}
	if len(staged) == 0 {
		return ApplyResult{}, apperrors.ErrImportNotValid
	}

	var records []model.FeeApplicationRecord
	updatesByTx := make(map[int]*repository.TransactionFeeUpdate)

	for _, row := range staged {
		record := model.FeeApplicationRecord{
			DealID:    row.DealID,
			Component: row.Component,
			Notes:     row.Notes,
			Applied:   !dryRun,
		}

		if row.TransactionID == nil {
			// Deal-level adjustment with no transaction to attribute to.
			if row.Percent != nil {
				record.Percent = *row.Percent
			}
			if row.Amount != nil {
				record.Amount = *row.Amount
			}
			records = append(records, record)
			continue
		}

		tx, err := s.txRepo.GetTransaction(*row.TransactionID)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToApplyFees, err)
		}
		if tx.ID == 0 {
			return ApplyResult{}, fmt.Errorf("%w: transaction %d referenced by import does not exist",
				apperrors.ErrTransactionNotFound, *row.TransactionID)
		}

		txID := tx.ID
		record.TransactionID = &txID
		record.Percent, record.Amount = resolveFeeValues(row, tx.GrossCapital)
		records = append(records, record)

		update, ok := updatesByTx[tx.ID]
		if !ok {
			update = &repository.TransactionFeeUpdate{
				TransactionID:         tx.ID,
				ManagementFeePercent:  tx.ManagementFeePercent,
				PerformanceFeePercent: tx.PerformanceFeePercent,
				StructuringFeePercent: tx.StructuringFeePercent,
				PremiumFeePercent:     tx.PremiumFeePercent,
				AdminFee:              tx.AdminFee,
			}
			updatesByTx[tx.ID] = update
		}

		switch record.Component {
		case model.ComponentManagement:
			update.ManagementFeePercent = record.Percent
		case model.ComponentPerformance:
			update.PerformanceFeePercent = record.Percent
		case model.ComponentStructuring:
			update.StructuringFeePercent = record.Percent
		case model.ComponentPremium:
			update.PremiumFeePercent = record.Percent
		case model.ComponentAdmin:
			update.AdminFee = record.Amount
		}
	}

	result := ApplyResult{
		ImportID:       importID,
		DryRun:         dryRun,
		RecordsApplied: len(records),
		Records:        records,
	}
	if dryRun {
		return result, nil
	}

	updates := make([]repository.TransactionFeeUpdate, 0, len(updatesByTx))
	for _, u := range updatesByTx {
		updates = append(updates, *u)
	}

	if err := s.feeRepo.ApplyImport(importID, records, updates); err != nil {
		return ApplyResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToApplyFees, err)
	}

	return result, nil
}

// GetImportFile retrieves and decrypts an archived import file for
// download. Returns the original filename and plaintext content.
func (s *ImportService) GetImportFile(importID string) (string, []byte, error) {
	filename, encrypted, err := s.feeRepo.GetImportFile(importID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveFees, err)
	}
	if filename == "" {
		return "", nil, apperrors.ErrFailedToRetrieveFees
	}
	if s.fernetKey == nil {
		return "", nil, fmt.Errorf("%w: no archive key configured", apperrors.ErrFailedToRetrieveFees)
	}

	plaintext := fernet.VerifyAndDecrypt(encrypted, 0, []*fernet.Key{s.fernetKey})
	if plaintext == nil {
		return "", nil, fmt.Errorf("%w: archived file failed decryption", apperrors.ErrFailedToRetrieveFees)
	}
	return filename, plaintext, nil
}

// resolveFeeValues derives the (percent, amount) pair of an application
// record from whichever side the CSV row carried, using the transaction's
// gross capital to convert.
func resolveFeeValues(row model.CSVImportRow, grossCapital float64) (percent, amount float64) {
	if row.Percent != nil {
		percent = *row.Percent
		amount = grossCapital * percent / 100
		return percent, amount
	}
	amount = *row.Amount
	if grossCapital > 0 {
		percent = amount / grossCapital * 100
	}
	return percent, amount
}
