package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/equinoxcap/investor-portal-backend/internal/api/request"
	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/model"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
	"github.com/equinoxcap/investor-portal-backend/internal/validation"
)

// FeesHandler serves fee profile and fee calculation endpoints.
type FeesHandler struct {
	service *service.FeeService
}

// NewFeesHandler creates a new FeesHandler.
func NewFeesHandler(service *service.FeeService) *FeesHandler {
	return &FeesHandler{service: service}
}

// GetDealProfile returns the fee profile governing a deal, creating the
// deal-type default if none exists yet.
func (h *FeesHandler) GetDealProfile(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	profile, err := h.service.GetOrCreateProfile(dealID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, profile)
}

// CreateProfile persists a new fee profile.
func (h *FeesHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		model.FeeProfile
		DealID *int `json:"dealId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	profile, err := h.service.CreateProfile(body.FeeProfile, body.DealID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, profile)
}

// CalculateTransactionFees returns the full fee breakdown for one
// transaction.
func (h *FeesHandler) CalculateTransactionFees(w http.ResponseWriter, r *http.Request) {
	transactionID, _ := validation.ParseID(chi.URLParam(r, "transactionID"))

	result, err := h.service.CalculateTransactionFees(transactionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, result)
}

// BatchCalculate computes fees for many transactions concurrently,
// reporting per-transaction failures alongside the successes.
func (h *FeesHandler) BatchCalculate(w http.ResponseWriter, r *http.Request) {
	var req request.BatchCalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.TransactionIDs) == 0 {
		response.RespondError(w, http.StatusBadRequest, "transactionIds is required", nil)
		return
	}

	results, batchErrors, err := h.service.BatchCalculateFees(r.Context(), req.TransactionIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"errors":  batchErrors,
	})
}

// GetDealFees returns the applied fee records for a deal.
func (h *FeesHandler) GetDealFees(w http.ResponseWriter, r *http.Request) {
	dealID, _ := validation.ParseID(chi.URLParam(r, "dealID"))

	records, err := h.service.GetDealFees(dealID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, records)
}
