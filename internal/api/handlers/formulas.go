package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/equinoxcap/investor-portal-backend/internal/api/request"
	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
	"github.com/equinoxcap/investor-portal-backend/internal/validation"
)

// FormulasHandler serves formula template, deal variable, assignment, and
// deal-economics endpoints.
type FormulasHandler struct {
	service *service.FormulaService
}

// NewFormulasHandler creates a new FormulasHandler.
func NewFormulasHandler(service *service.FormulaService) *FormulasHandler {
	return &FormulasHandler{service: service}
}

// ListTemplates returns formula templates. Pass ?includeInactive=true to
// include soft-deleted ones.
func (h *FormulasHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	templates, err := h.service.ListTemplates(includeInactive)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, templates)
}

// GetTemplate returns one formula template.
func (h *FormulasHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.service.GetTemplate(chi.URLParam(r, "templateID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, template)
}

// GetTemplateByCode returns one formula template looked up by code.
func (h *FormulasHandler) GetTemplateByCode(w http.ResponseWriter, r *http.Request) {
	template, err := h.service.GetTemplateByCode(chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, template)
}

// CreateTemplate validates and persists a new formula template.
func (h *FormulasHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTemplateRequest(w, r)
	if !ok {
		return
	}

	template, err := h.service.CreateTemplate(templateFromRequest(req, ""))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, template)
}

// UpdateTemplate validates and overwrites an existing formula template.
func (h *FormulasHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTemplateRequest(w, r)
	if !ok {
		return
	}

	template, err := h.service.UpdateTemplate(templateFromRequest(req, chi.URLParam(r, "templateID")))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, template)
}

// DeleteTemplate soft-deletes a formula template.
func (h *FormulasHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(chi.URLParam(r, "templateID")); err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusNoContent, nil)
}

// GetDealVariables returns a deal's resolved variable environment. Pass
// ?investorId=N to apply that investor's overrides.
func (h *FormulasHandler) GetDealVariables(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))
	investorID, ok := optionalIDQuery(w, r, "investorId")
	if !ok {
		return
	}

	env, err := h.service.GetDealVariables(dealID, investorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, env)
}

// SetDealVariables writes a batch of variable values for a deal.
func (h *FormulasHandler) SetDealVariables(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	var req request.SetVariablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateSetVariables(req); err != nil {
		handleServiceError(w, err)
		return
	}

	values := make([]model.DealVariableValue, len(req.Variables))
	for i, v := range req.Variables {
		value := model.DealVariableValue{
			DealID:       dealID,
			InvestorID:   v.InvestorID,
			VariableCode: v.Code,
			Value:        v.Value,
			Source:       model.VariableSource(v.Source),
		}
		if v.EffectiveDate != "" {
			value.EffectiveDate, _ = time.Parse("2006-01-02", v.EffectiveDate)
		}
		values[i] = value
	}

	if err := h.service.SetDealVariables(dealID, values); err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusNoContent, nil)
}

// AssignFormula makes a template the active formula for a deal.
func (h *FormulasHandler) AssignFormula(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	var req request.AssignFormulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateAssignFormula(req); err != nil {
		handleServiceError(w, err)
		return
	}

	var effectiveDate time.Time
	if req.EffectiveDate != "" {
		effectiveDate, _ = time.Parse("2006-01-02", req.EffectiveDate)
	}

	assignment, err := h.service.AssignFormula(dealID, req.FormulaTemplateID, effectiveDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, assignment)
}

// GetDealFormula returns the template currently assigned to a deal.
func (h *FormulasHandler) GetDealFormula(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	template, err := h.service.GetDealFormula(dealID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, template)
}

// GetAssignmentHistory returns a deal's full assignment history.
func (h *FormulasHandler) GetAssignmentHistory(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	history, err := h.service.GetAssignmentHistory(dealID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, history)
}

// Calculate runs a deal's assigned formulas and returns the economics.
func (h *FormulasHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	var req request.CalculateEconomicsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	economics, err := h.service.CalculateDealEconomics(dealID, req.InvestorID, req.TransactionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, economics)
}

// GetCalculationHistory returns recent audit rows for a deal. Pass
// ?limit=N to cap the result.
func (h *FormulasHandler) GetCalculationHistory(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	audits, err := h.service.GetCalculationHistory(dealID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, audits)
}

// TestFormula evaluates an ad-hoc formula against supplied variables.
func (h *FormulasHandler) TestFormula(w http.ResponseWriter, r *http.Request) {
	var req request.TestFormulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.service.TestFormula(req.Formula, req.Variables)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, map[string]float64{"result": result})
}

func decodeTemplateRequest(w http.ResponseWriter, r *http.Request) (request.FormulaTemplateRequest, bool) {
	var req request.FormulaTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	if err := validation.ValidateTemplateRequest(req); err != nil {
		handleServiceError(w, err)
		return req, false
	}
	return req, true
}

func templateFromRequest(req request.FormulaTemplateRequest, id string) model.FormulaTemplate {
	return model.FormulaTemplate{
		ID:                              id,
		Code:                            req.Code,
		Name:                            req.Name,
		Description:                     req.Description,
		NCFormula:                       req.NCFormula,
		InvestorProceedsFormula:         req.InvestorProceedsFormula,
		InvestorProceedsDiscountFormula: req.InvestorProceedsDiscountFormula,
		PartnerProceedsFormula:          req.PartnerProceedsFormula,
		PartnerProceedsDiscountFormula:  req.PartnerProceedsDiscountFormula,
		HasDualMgmtFee:                  req.HasDualMgmtFee,
		HasPremium:                      req.HasPremium,
		HasStructuring:                  req.HasStructuring,
		HasOtherFees:                    req.HasOtherFees,
		HasPartnerTranche:               req.HasPartnerTranche,
		MgmtFeeSplitYear:                req.MgmtFeeSplitYear,
	}
}

// optionalIDQuery parses an optional positive-integer query parameter.
// Writes the error response itself on failure.
func optionalIDQuery(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, true
	}
	id, err := validation.ParseID(value)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid "+name, err.Error())
		return nil, false
	}
	return &id, true
}
