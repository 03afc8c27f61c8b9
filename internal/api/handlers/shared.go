// Package handlers implements the HTTP handlers of the API. Handlers
// decode and validate requests, delegate to the service layer, and map
// service errors onto HTTP status codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/apperrors"
	"github.com/equinoxcap/investor-portal-backend/internal/validation"
)

// handleServiceError translates a service-layer error into an HTTP error
// response: missing entities map to 404, business rule violations to 400,
// everything else to 500.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrDealNotFound),
		errors.Is(err, apperrors.ErrTransactionNotFound),
		errors.Is(err, apperrors.ErrFeeProfileNotFound),
		errors.Is(err, apperrors.ErrFormulaTemplateNotFound),
		errors.Is(err, apperrors.ErrNoFormulaAssigned):
		response.RespondError(w, http.StatusNotFound, err.Error(), nil)

	case errors.Is(err, apperrors.ErrInvalidFormula),
		errors.Is(err, apperrors.ErrInvalidProfile),
		errors.Is(err, apperrors.ErrImportNotValid),
		errors.Is(err, apperrors.ErrInvalidDealID),
		errors.Is(err, apperrors.ErrInvalidTransactionID),
		errors.Is(err, apperrors.ErrInvalidCSVHeaders):
		response.RespondError(w, http.StatusBadRequest, err.Error(), nil)

	default:
		var validationErr *validation.Error
		if errors.As(err, &validationErr) {
			response.RespondError(w, http.StatusBadRequest, "validation failed", validationErr.Fields)
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "internal server error", err.Error())
	}
}
