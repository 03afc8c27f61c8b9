// Package service implements the business logic layer: fee profiles and
// calculation, CSV fee imports, formula templates and deal economics, and
// transaction creation. Services validate inputs, orchestrate the
// repositories, and translate failures into apperrors sentinels.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/feeengine"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
)

// batchCalculationLimit caps concurrent fee calculations in a batch run.
const batchCalculationLimit = 10

// FeeService handles fee profile management and fee calculation.
type FeeService struct {
	feeRepo  *repository.FeeRepository
	dealRepo *repository.DealRepository
	txRepo   *repository.TransactionRepository
}

// NewFeeService creates a new FeeService.
func NewFeeService(feeRepo *repository.FeeRepository, dealRepo *repository.DealRepository, txRepo *repository.TransactionRepository) *FeeService {
	return &FeeService{feeRepo: feeRepo, dealRepo: dealRepo, txRepo: txRepo}
}

// GetOrCreateProfile returns the fee profile governing a deal. When neither
// a deal-specific profile nor a deal-type default exists, the standard
// default for the deal's type is created and persisted as the type default.
func (s *FeeService) GetOrCreateProfile(dealID int) (model.FeeProfile, error) {
	deal, err := s.dealRepo.GetDeal(dealID)
	if err != nil {
		return model.FeeProfile{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveProfile, err)
	}
	if deal.ID == 0 {
		return model.FeeProfile{}, apperrors.ErrDealNotFound
	}

	profile, found, err := s.feeRepo.GetProfileForDeal(deal.ID, deal.DealType)
	if err != nil {
		return model.FeeProfile{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveProfile, err)
	}
	if found {
		return profile, nil
	}

	profile, err = s.feeRepo.CreateProfile(defaultProfile(deal.DealType), nil)
	if err != nil {
		return model.FeeProfile{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCreateProfile, err)
	}
	return profile, nil
}

// CreateProfile validates and persists a fee profile. A non-nil dealID
// makes it a deal-specific override.
func (s *FeeService) CreateProfile(profile model.FeeProfile, dealID *int) (model.FeeProfile, error) {
	if problems := feeengine.ValidateProfile(profile); len(problems) > 0 {
		return model.FeeProfile{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidProfile, problems)
	}

	created, err := s.feeRepo.CreateProfile(profile, dealID)
	if err != nil {
		return model.FeeProfile{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCreateProfile, err)
	}
	return created, nil
}

// CalculateTransactionFees computes the full fee breakdown for one
// persisted transaction against its deal's profile.
func (s *FeeService) CalculateTransactionFees(transactionID int) (model.FeeCalculationResult, error) {
	tx, err := s.txRepo.GetTransaction(transactionID)
	if err != nil {
		return model.FeeCalculationResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculateFees, err)
	}
	if tx.ID == 0 {
		return model.FeeCalculationResult{}, apperrors.ErrTransactionNotFound
	}

	deal, err := s.dealRepo.GetDeal(tx.DealID)
	if err != nil {
		return model.FeeCalculationResult{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculateFees, err)
	}
	if deal.ID == 0 {
		return model.FeeCalculationResult{}, apperrors.ErrDealNotFound
	}

	profile, err := s.GetOrCreateProfile(deal.ID)
	if err != nil {
		return model.FeeCalculationResult{}, err
	}

	feeCtx := model.TransactionFeeContext{
		TransactionID: tx.ID,
		DealID:        deal.ID,
		InvestorID:    tx.InvestorID,
		Date:          tx.Date,
		GrossCapital:  tx.GrossCapital,
		NetCapital:    tx.InitialNetCapital,
		Units:         tx.Units,
		UnitPrice:     tx.UnitPrice,
		DealType:      deal.DealType,
	}

	return feeengine.NewCalculator(profile).Calculate(feeCtx), nil
}

// BatchError records one failed calculation within a batch run.
type BatchError struct {
	TransactionID int    `json:"transactionId"`
	Error         string `json:"error"`
}

// BatchCalculateFees computes fees for many transactions concurrently.
// Failures are isolated per transaction: the successes are returned
// alongside the per-transaction errors, and only a cancelled context
// aborts the whole batch.
func (s *FeeService) BatchCalculateFees(ctx context.Context, transactionIDs []int) ([]model.FeeCalculationResult, []BatchError, error) {
	results := make([]*model.FeeCalculationResult, len(transactionIDs))

	var mu sync.Mutex
	var batchErrors []BatchError

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchCalculationLimit)

	for i, id := range transactionIDs {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := s.CalculateTransactionFees(id)
			if err != nil {
				mu.Lock()
				batchErrors = append(batchErrors, BatchError{TransactionID: id, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			results[i] = &result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculateFees, err)
	}

	succeeded := make([]model.FeeCalculationResult, 0, len(transactionIDs))
	for _, r := range results {
		if r != nil {
			succeeded = append(succeeded, *r)
		}
	}
	sort.Slice(batchErrors, func(i, j int) bool { return batchErrors[i].TransactionID < batchErrors[j].TransactionID })

	return succeeded, batchErrors, nil
}

// GetDealFees retrieves the applied fee records for a deal.
func (s *FeeService) GetDealFees(dealID int) ([]model.FeeApplicationRecord, error) {
	deal, err := s.dealRepo.GetDeal(dealID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveFees, err)
	}
	if deal.ID == 0 {
		return nil, apperrors.ErrDealNotFound
	}

	records, err := s.feeRepo.GetApplicationRecords(dealID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveFees, err)
	}
	return records, nil
}

// defaultProfile builds the standard fee schedule for a deal type, used
// when no profile has been configured yet.
func defaultProfile(dealType model.DealType) model.FeeProfile {
	switch dealType {
	case model.DealTypeSecondary:
		return model.FeeProfile{
			Name:     "Standard Secondary",
			Kind:     model.ProfileKindLegacy,
			DealType: dealType,
			Config: model.FeeConfiguration{
				Tiers: []model.FeeTier{
					{Threshold: 0, ManagementFee: 0.015, PerformanceFee: 0.15, AdminFee: 0.004, StructuringFee: 0.01},
				},
				HurdleRate:      0.06,
				CatchUp:         true,
				Crystallization: model.CrystallizationExit,
			},
		}
	case model.DealTypeAdvisory:
		return model.FeeProfile{
			Name:     "Standard Advisory",
			Kind:     model.ProfileKindModern,
			DealType: dealType,
			Config: model.FeeConfiguration{
				Components: []model.FeeComponentConfig{
					{Component: model.ComponentAdvisory, Basis: model.BasisGrossCapital, Rate: 0.01, IsPercent: true, Precedence: 1},
				},
			},
		}
	case model.DealTypeCoinvest:
		return model.FeeProfile{
			Name:     "Standard Co-Investment",
			Kind:     model.ProfileKindLegacy,
			DealType: dealType,
			Config: model.FeeConfiguration{
				Tiers: []model.FeeTier{
					{Threshold: 0, ManagementFee: 0.01, PerformanceFee: 0.10, StructuringFee: 0.005},
				},
				Crystallization: model.CrystallizationExit,
			},
		}
	default:
		// PRIMARY and FUND share the flagship 2-and-20 schedule.
		return model.FeeProfile{
			Name:     "Standard Primary",
			Kind:     model.ProfileKindLegacy,
			DealType: dealType,
			Config: model.FeeConfiguration{
				Tiers: []model.FeeTier{
					{Threshold: 0, ManagementFee: 0.02, PerformanceFee: 0.20, AdminFee: 0.005, StructuringFee: 0.015},
					{Threshold: 1000000, ManagementFee: 0.015, PerformanceFee: 0.20, AdminFee: 0.005, StructuringFee: 0.01},
				},
				HurdleRate:      0.08,
				CatchUp:         true,
				HighWaterMark:   true,
				Crystallization: model.CrystallizationAnnual,
			},
		}
	}
}
