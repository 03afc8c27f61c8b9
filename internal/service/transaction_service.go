package service

import (
	"fmt"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/feeengine"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
)

// TransactionService handles creating investor subscriptions with their fee
// breakdown computed at entry, previewing them, and recalculating persisted
// fee fields when profiles change.
type TransactionService struct {
	txRepo     *repository.TransactionRepository
	dealRepo   *repository.DealRepository
	feeService *FeeService
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(txRepo *repository.TransactionRepository, dealRepo *repository.DealRepository, feeService *FeeService) *TransactionService {
	return &TransactionService{txRepo: txRepo, dealRepo: dealRepo, feeService: feeService}
}

// CreateTransactionInput carries the caller-supplied fields of a new
// transaction. GrossCapital defaults to Units * UnitPrice when omitted.
type CreateTransactionInput struct {
	DealID       int       `json:"dealId"`
	InvestorID   int       `json:"investorId"`
	Date         time.Time `json:"date"`
	Units        float64   `json:"units"`
	UnitPrice    float64   `json:"unitPrice"`
	GrossCapital float64   `json:"grossCapital"`
}

// Preview computes the full fee breakdown a transaction would get without
// persisting anything.
func (s *TransactionService) Preview(input CreateTransactionInput) (model.TransactionOutput, error) {
	deal, profile, err := s.resolveDeal(input.DealID)
	if err != nil {
		return model.TransactionOutput{}, err
	}
	return s.buildOutput(input, deal, profile, 0), nil
}

// Create persists a new transaction with its fee fields derived from the
// deal's fee profile. The computed net amount becomes the transaction's
// initial net capital.
func (s *TransactionService) Create(input CreateTransactionInput) (model.TransactionOutput, error) {
	deal, profile, err := s.resolveDeal(input.DealID)
	if err != nil {
		return model.TransactionOutput{}, err
	}

	output := s.buildOutput(input, deal, profile, 0)
	breakdown := output.FeeBreakdown

	tx := model.Transaction{
		DealID:            deal.ID,
		InvestorID:        input.InvestorID,
		Date:              input.Date,
		Units:             input.Units,
		UnitPrice:         input.UnitPrice,
		GrossCapital:      output.GrossCapital,
		InitialNetCapital: &breakdown.NetAmount,
		AdminFee:          componentAmount(breakdown, model.ComponentAdmin),
	}
	tx.ManagementFeePercent = componentPercent(breakdown, model.ComponentManagement)
	tx.PerformanceFeePercent = componentPercent(breakdown, model.ComponentPerformance)
	tx.StructuringFeePercent = componentPercent(breakdown, model.ComponentStructuring)
	tx.PremiumFeePercent = componentPercent(breakdown, model.ComponentPremium)
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}

	id, err := s.txRepo.CreateTransaction(tx)
	if err != nil {
		return model.TransactionOutput{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCreateTransaction, err)
	}

	output.TransactionID = id
	output.FeeBreakdown.TransactionID = id
	return output, nil
}

// Get retrieves a persisted transaction.
func (s *TransactionService) Get(transactionID int) (model.Transaction, error) {
	tx, err := s.txRepo.GetTransaction(transactionID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveTransaction, err)
	}
	if tx.ID == 0 {
		return model.Transaction{}, apperrors.ErrTransactionNotFound
	}
	return tx, nil
}

// Recalculate recomputes a transaction's fees against the current fee
// profile and overwrites its persisted fee fields.
func (s *TransactionService) Recalculate(transactionID int) (model.FeeCalculationResult, error) {
	breakdown, err := s.feeService.CalculateTransactionFees(transactionID)
	if err != nil {
		return model.FeeCalculationResult{}, err
	}

	err = s.txRepo.UpdateTransactionFees(transactionID,
		componentPercent(breakdown, model.ComponentManagement),
		componentPercent(breakdown, model.ComponentPerformance),
		componentPercent(breakdown, model.ComponentStructuring),
		componentPercent(breakdown, model.ComponentPremium),
		componentAmount(breakdown, model.ComponentAdmin),
	)
	if err != nil {
		return model.FeeCalculationResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculateFees, err)
	}

	return breakdown, nil
}

// RecalculateDeal recalculates every transaction of a deal, isolating
// per-transaction failures. Returns the number of transactions updated and
// the errors encountered.
func (s *TransactionService) RecalculateDeal(dealID int) (int, []BatchError, error) {
	transactions, err := s.txRepo.GetTransactionsByDeal(dealID)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculateFees, err)
	}

	updated := 0
	var errs []BatchError
	for _, tx := range transactions {
		if _, err := s.Recalculate(tx.ID); err != nil {
			errs = append(errs, BatchError{TransactionID: tx.ID, Error: err.Error()})
			continue
		}
		updated++
	}
	return updated, errs, nil
}

// BulkError records one failed creation within a bulk run.
type BulkError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkResult is the outcome of a bulk transaction creation.
type BulkResult struct {
	Created []model.TransactionOutput `json:"created"`
	Errors  []BulkError               `json:"errors,omitempty"`
}

// BulkCreate creates many transactions sequentially. With stopOnError set
// the run aborts at the first failure; otherwise failures are collected and
// the remaining inputs still process.
func (s *TransactionService) BulkCreate(inputs []CreateTransactionInput, stopOnError bool) (BulkResult, error) {
	result := BulkResult{Created: []model.TransactionOutput{}}

	for i, input := range inputs {
		output, err := s.Create(input)
		if err != nil {
			result.Errors = append(result.Errors, BulkError{Index: i, Error: err.Error()})
			if stopOnError {
				return result, nil
			}
			continue
		}
		result.Created = append(result.Created, output)
	}

	return result, nil
}

func (s *TransactionService) resolveDeal(dealID int) (model.Deal, model.FeeProfile, error) {
	deal, err := s.dealRepo.GetDeal(dealID)
	if err != nil {
		return model.Deal{}, model.FeeProfile{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCreateTransaction, err)
	}
	if deal.ID == 0 {
		return model.Deal{}, model.FeeProfile{}, apperrors.ErrDealNotFound
	}

	profile, err := s.feeService.GetOrCreateProfile(deal.ID)
	if err != nil {
		return model.Deal{}, model.FeeProfile{}, err
	}
	return deal, profile, nil
}

func (s *TransactionService) buildOutput(input CreateTransactionInput, deal model.Deal, profile model.FeeProfile, transactionID int) model.TransactionOutput {
	gross := input.GrossCapital
	if gross == 0 {
		gross = input.Units * input.UnitPrice
	}

	feeCtx := model.TransactionFeeContext{
		TransactionID: transactionID,
		DealID:        deal.ID,
		InvestorID:    input.InvestorID,
		Date:          input.Date,
		GrossCapital:  gross,
		Units:         input.Units,
		UnitPrice:     input.UnitPrice,
		DealType:      deal.DealType,
	}

	breakdown := feeengine.NewCalculator(profile).Calculate(feeCtx)

	return model.TransactionOutput{
		TransactionID: transactionID,
		DealID:        deal.ID,
		InvestorID:    input.InvestorID,
		GrossCapital:  gross,
		TotalFees:     breakdown.TotalFees,
		NetCapital:    breakdown.NetAmount,
		FeeBreakdown:  breakdown,
	}
}

// componentPercent extracts a component's rate from a fee breakdown as a
// percentage, matching how the transaction table stores fee fields.
func componentPercent(result model.FeeCalculationResult, component model.FeeComponent) float64 {
	for _, item := range result.Components {
		if item.Component == component {
			return item.Rate * 100
		}
	}
	return 0
}

func componentAmount(result model.FeeCalculationResult, component model.FeeComponent) float64 {
	for _, item := range result.Components {
		if item.Component == component {
			return item.CalculatedAmount
		}
	}
	return 0
}
