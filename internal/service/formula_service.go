package service

import (
	"fmt"
	"math"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/formula"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/repository"
)

// FormulaService handles formula templates, deal variables, assignments,
// and deal-economics calculations.
type FormulaService struct {
	formulaRepo *repository.FormulaRepository
	dealRepo    *repository.DealRepository
}

// NewFormulaService creates a new FormulaService.
func NewFormulaService(formulaRepo *repository.FormulaRepository, dealRepo *repository.DealRepository) *FormulaService {
	return &FormulaService{formulaRepo: formulaRepo, dealRepo: dealRepo}
}

// ListTemplates retrieves formula templates, optionally including
// soft-deleted ones.
func (s *FormulaService) ListTemplates(includeInactive bool) ([]model.FormulaTemplate, error) {
	templates, err := s.formulaRepo.ListTemplates(includeInactive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveTemplates, err)
	}
	return templates, nil
}

// GetTemplate retrieves one formula template by ID.
func (s *FormulaService) GetTemplate(templateID string) (model.FormulaTemplate, error) {
	template, err := s.formulaRepo.GetTemplate(templateID)
	if err != nil {
		return model.FormulaTemplate{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveTemplates, err)
	}
	if template.ID == "" {
		return model.FormulaTemplate{}, apperrors.ErrFormulaTemplateNotFound
	}
	return template, nil
}

// GetTemplateByCode retrieves one formula template by its unique code.
func (s *FormulaService) GetTemplateByCode(code string) (model.FormulaTemplate, error) {
	template, err := s.formulaRepo.GetTemplateByCode(code)
	if err != nil {
		return model.FormulaTemplate{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveTemplates, err)
	}
	if template.ID == "" {
		return model.FormulaTemplate{}, apperrors.ErrFormulaTemplateNotFound
	}
	return template, nil
}

// CreateTemplate validates every formula on a template and persists it.
// The three investor formulas are required; partner formulas are required
// only when the template declares a partner tranche.
func (s *FormulaService) CreateTemplate(t model.FormulaTemplate) (model.FormulaTemplate, error) {
	if err := validateTemplate(t); err != nil {
		return model.FormulaTemplate{}, err
	}

	t.IsActive = true
	created, err := s.formulaRepo.CreateTemplate(t)
	if err != nil {
		return model.FormulaTemplate{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToSaveTemplate, err)
	}
	return created, nil
}

// UpdateTemplate validates and overwrites an existing template. The stored
// active flag is preserved so an update cannot resurrect a soft-deleted
// template.
func (s *FormulaService) UpdateTemplate(t model.FormulaTemplate) (model.FormulaTemplate, error) {
	existing, err := s.GetTemplate(t.ID)
	if err != nil {
		return model.FormulaTemplate{}, err
	}

	if err := validateTemplate(t); err != nil {
		return model.FormulaTemplate{}, err
	}

	t.CreatedAt = existing.CreatedAt
	t.IsActive = existing.IsActive
	if err := s.formulaRepo.UpdateTemplate(t); err != nil {
		return model.FormulaTemplate{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToSaveTemplate, err)
	}
	return s.GetTemplate(t.ID)
}

// DeleteTemplate soft-deletes a template so historical audit rows keep a
// valid reference.
func (s *FormulaService) DeleteTemplate(templateID string) error {
	if _, err := s.GetTemplate(templateID); err != nil {
		return err
	}
	if err := s.formulaRepo.DeactivateTemplate(templateID); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrFailedToSaveTemplate, err)
	}
	return nil
}

// GetDealVariables resolves the variable environment for a deal and
// optional investor. Deal-level values apply first; investor-specific rows
// override them, and within each scope the latest effective date wins.
func (s *FormulaService) GetDealVariables(dealID int, investorID *int) (map[string]float64, error) {
	if err := s.requireDeal(dealID); err != nil {
		return nil, err
	}

	values, err := s.formulaRepo.GetDealVariables(dealID, investorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveVariables, err)
	}

	// Rows arrive deal-level first, then investor overrides, each in
	// ascending effective-date order, so the last write per code wins.
	env := make(map[string]float64, len(values))
	for _, v := range values {
		env[v.VariableCode] = v.Value
	}
	return env, nil
}

// SetDealVariables upserts a batch of variable values for a deal.
func (s *FormulaService) SetDealVariables(dealID int, values []model.DealVariableValue) error {
	if err := s.requireDeal(dealID); err != nil {
		return err
	}

	for _, v := range values {
		v.DealID = dealID
		if v.Source == "" {
			v.Source = model.SourceManual
		}
		if v.EffectiveDate.IsZero() {
			v.EffectiveDate = time.Now().UTC()
		}
		if err := s.formulaRepo.UpsertVariable(v); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrFailedToSaveVariables, err)
		}
	}
	return nil
}

// AssignFormula makes a template the active formula for a deal, appending
// to the deal's assignment history.
func (s *FormulaService) AssignFormula(dealID int, templateID string, effectiveDate time.Time) (model.FormulaAssignment, error) {
	if err := s.requireDeal(dealID); err != nil {
		return model.FormulaAssignment{}, err
	}
	if _, err := s.GetTemplate(templateID); err != nil {
		return model.FormulaAssignment{}, err
	}
	if effectiveDate.IsZero() {
		effectiveDate = time.Now().UTC()
	}

	assignment, err := s.formulaRepo.AssignFormula(model.FormulaAssignment{
		DealID:            dealID,
		FormulaTemplateID: templateID,
		EffectiveDate:     effectiveDate,
	})
	if err != nil {
		return model.FormulaAssignment{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToAssignFormula, err)
	}
	return assignment, nil
}

// GetDealFormula retrieves the template currently assigned to a deal.
func (s *FormulaService) GetDealFormula(dealID int) (model.FormulaTemplate, error) {
	if err := s.requireDeal(dealID); err != nil {
		return model.FormulaTemplate{}, err
	}

	assignment, found, err := s.formulaRepo.GetActiveAssignment(dealID)
	if err != nil {
		return model.FormulaTemplate{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveTemplates, err)
	}
	if !found {
		return model.FormulaTemplate{}, apperrors.ErrNoFormulaAssigned
	}

	return s.GetTemplate(assignment.FormulaTemplateID)
}

// GetAssignmentHistory retrieves a deal's full assignment history, newest
// first.
func (s *FormulaService) GetAssignmentHistory(dealID int) ([]model.FormulaAssignment, error) {
	if err := s.requireDeal(dealID); err != nil {
		return nil, err
	}

	history, err := s.formulaRepo.GetAssignmentHistory(dealID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveTemplates, err)
	}
	return history, nil
}

// CalculateDealEconomics runs a deal's assigned formulas against its
// resolved variable environment and records the outcome in the audit log.
//
// The derived figures follow from the formula outputs: gross proceeds are
// net capital scaled by the exit-to-initial unit price ratio, total fees
// are the spread between gross and investor proceeds, MOIC is proceeds
// over net capital, and IRR annualizes MOIC over the holding period T.
func (s *FormulaService) CalculateDealEconomics(dealID int, investorID, transactionID *int) (model.DealEconomics, error) {
	template, err := s.GetDealFormula(dealID)
	if err != nil {
		return model.DealEconomics{}, err
	}

	env, err := s.GetDealVariables(dealID, investorID)
	if err != nil {
		return model.DealEconomics{}, err
	}

	netCapital, err := formula.Eval(template.NCFormula, env)
	if err != nil {
		return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
	}
	env["NC"] = netCapital

	proceeds, err := formula.Eval(template.InvestorProceedsFormula, env)
	if err != nil {
		return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
	}
	discounted, err := formula.Eval(template.InvestorProceedsDiscountFormula, env)
	if err != nil {
		return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
	}

	economics := model.DealEconomics{
		NetCapital:                 netCapital,
		InvestorProceeds:           proceeds,
		InvestorProceedsDiscounted: discounted,
	}

	if template.HasPartnerTranche {
		partner, err := formula.Eval(template.PartnerProceedsFormula, env)
		if err != nil {
			return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
		}
		economics.PartnerProceeds = &partner

		if template.PartnerProceedsDiscountFormula != "" {
			partnerDiscounted, err := formula.Eval(template.PartnerProceedsDiscountFormula, env)
			if err != nil {
				return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
			}
			economics.PartnerProceedsDiscounted = &partnerDiscounted
		}
	}

	grossProceeds, err := formula.Eval("NC * (EUP / IUP)", env)
	if err != nil {
		return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
	}
	economics.TotalFees = grossProceeds - proceeds
	economics.TotalFeesDiscounted = grossProceeds - discounted

	if netCapital > 0 {
		economics.MOIC = proceeds / netCapital
	}
	if holdingYears, ok := env["T"]; ok && holdingYears > 0 && economics.MOIC > 0 {
		economics.IRR = math.Pow(economics.MOIC, 1/holdingYears) - 1
	}

	_, err = s.formulaRepo.InsertAudit(model.CalculationAudit{
		DealID:            dealID,
		InvestorID:        investorID,
		TransactionID:     transactionID,
		CalculationType:   "DEAL_ECONOMICS",
		FormulaTemplateID: template.ID,
		FormulaUsed:       template.InvestorProceedsFormula,
		VariablesSnapshot: env,
		Result:            proceeds,
		ResultDetails:     economics,
	})
	if err != nil {
		return model.DealEconomics{}, fmt.Errorf("%w: %v", apperrors.ErrFailedToCalculate, err)
	}

	return economics, nil
}

// TestFormula evaluates an ad-hoc formula against supplied variables
// without touching any deal state. Used by the template editor.
func (s *FormulaService) TestFormula(form string, vars map[string]float64) (float64, error) {
	if err := formula.Validate(form); err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidFormula, err)
	}
	result, err := formula.Eval(form, vars)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidFormula, err)
	}
	return result, nil
}

// GetCalculationHistory retrieves recent audit rows for a deal.
func (s *FormulaService) GetCalculationHistory(dealID int, limit int) ([]model.CalculationAudit, error) {
	if err := s.requireDeal(dealID); err != nil {
		return nil, err
	}

	audits, err := s.formulaRepo.GetAuditHistory(dealID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveAudit, err)
	}
	return audits, nil
}

func (s *FormulaService) requireDeal(dealID int) error {
	deal, err := s.dealRepo.GetDeal(dealID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrFailedToRetrieveVariables, err)
	}
	if deal.ID == 0 {
		return apperrors.ErrDealNotFound
	}
	return nil
}

func validateTemplate(t model.FormulaTemplate) error {
	if t.Code == "" || t.Name == "" {
		return fmt.Errorf("%w: code and name are required", apperrors.ErrInvalidFormula)
	}

	required := map[string]string{
		"ncFormula":                       t.NCFormula,
		"investorProceedsFormula":         t.InvestorProceedsFormula,
		"investorProceedsDiscountFormula": t.InvestorProceedsDiscountFormula,
	}
	if t.HasPartnerTranche {
		required["partnerProceedsFormula"] = t.PartnerProceedsFormula
	}

	for field, form := range required {
		if form == "" {
			return fmt.Errorf("%w: %s is required", apperrors.ErrInvalidFormula, field)
		}
		if err := formula.Validate(form); err != nil {
			return fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidFormula, field, err)
		}
	}

	// Optional formulas still have to parse when present.
	for field, form := range map[string]string{
		"partnerProceedsFormula":         t.PartnerProceedsFormula,
		"partnerProceedsDiscountFormula": t.PartnerProceedsDiscountFormula,
	} {
		if form == "" {
			continue
		}
		if err := formula.Validate(form); err != nil {
			return fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidFormula, field, err)
		}
	}

	return nil
}
