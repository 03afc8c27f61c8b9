package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/equinoxcap/investor-portal-backend/internal/api/request"
	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
	"github.com/equinoxcap/investor-portal-backend/internal/validation"
)

// TransactionsHandler serves transaction creation, preview, and
// recalculation endpoints.
type TransactionsHandler struct {
	service *service.TransactionService
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(service *service.TransactionService) *TransactionsHandler {
	return &TransactionsHandler{service: service}
}

// Create persists a new transaction with its fees computed at entry.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCreateRequest(w, r)
	if !ok {
		return
	}

	output, err := h.service.Create(input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, output)
}

// Preview computes the fee breakdown a transaction would get without
// persisting anything.
func (h *TransactionsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCreateRequest(w, r)
	if !ok {
		return
	}

	output, err := h.service.Preview(input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, output)
}

// Get returns one persisted transaction.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	transactionID, _ := validation.ParseID(chi.URLParam(r, "transactionID"))

	tx, err := h.service.Get(transactionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, tx)
}

// Recalculate recomputes a transaction's fees against the current fee
// profile and persists the result.
func (h *TransactionsHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	transactionID, _ := validation.ParseID(chi.URLParam(r, "transactionID"))

	result, err := h.service.Recalculate(transactionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, result)
}

// BulkCreate creates many transactions in one request.
func (h *TransactionsHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req request.BulkCreateTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Transactions) == 0 {
		response.RespondError(w, http.StatusBadRequest, "transactions is required", nil)
		return
	}

	inputs := make([]service.CreateTransactionInput, 0, len(req.Transactions))
	for _, tr := range req.Transactions {
		if err := validation.ValidateCreateTransaction(tr); err != nil {
			handleServiceError(w, err)
			return
		}
		inputs = append(inputs, inputFromRequest(tr))
	}

	result, err := h.service.BulkCreate(inputs, req.StopOnError)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusCreated, result)
}

func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (service.CreateTransactionInput, bool) {
	var req request.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return service.CreateTransactionInput{}, false
	}
	if err := validation.ValidateCreateTransaction(req); err != nil {
		handleServiceError(w, err)
		return service.CreateTransactionInput{}, false
	}
	return inputFromRequest(req), true
}

func inputFromRequest(req request.CreateTransactionRequest) service.CreateTransactionInput {
	input := service.CreateTransactionInput{
		DealID:       req.DealID,
		InvestorID:   req.InvestorID,
		Units:        req.Units,
		UnitPrice:    req.UnitPrice,
		GrossCapital: req.GrossCapital,
	}
	if req.Date != "" {
		input.Date, _ = time.Parse("2006-01-02", req.Date)
	}
	return input
}
