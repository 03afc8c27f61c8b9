package validation

import (
	"strings"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/api/request"
)

// ValidateCreateTransaction validates a transaction creation request.
// Checks all required fields and validates their formats and constraints.
//
// Required fields:
//   - dealId: Must be a positive integer
//   - investorId: Must be a positive integer
//   - units and unitPrice, or grossCapital: at least one way to derive a
//     positive gross capital must be present
//
// The date is optional but must be in YYYY-MM-DD format when provided.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateTransaction(req request.CreateTransactionRequest) error {
	errors := make(map[string]string)

	if req.DealID <= 0 {
		errors["dealId"] = "dealId must be a positive integer"
	}

	if req.InvestorID <= 0 {
		errors["investorId"] = "investorId must be a positive integer"
	}

	if strings.TrimSpace(req.Date) != "" {
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			errors["date"] = err.Error()
		}
	}

	if req.Units < 0 {
		errors["units"] = "units must not be negative"
	}
	if req.UnitPrice < 0 {
		errors["unitPrice"] = "unitPrice must not be negative"
	}
	if req.GrossCapital < 0 {
		errors["grossCapital"] = "grossCapital must not be negative"
	}

	if req.GrossCapital == 0 && req.Units*req.UnitPrice == 0 {
		errors["grossCapital"] = "grossCapital or units and unitPrice must be provided"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
