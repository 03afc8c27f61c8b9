package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/api/request"
)

// variableCodePattern is the shape of a formula variable code: uppercase
// letters, digits and underscores, starting with a letter.
var variableCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidateTemplateRequest validates a formula template create/update
// request. Formula syntax itself is checked by the service; this covers
// the request shape.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateTemplateRequest(req request.FormulaTemplateRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Code) == "" {
		errors["code"] = "code is required"
	}
	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	}
	if strings.TrimSpace(req.NCFormula) == "" {
		errors["ncFormula"] = "ncFormula is required"
	}
	if strings.TrimSpace(req.InvestorProceedsFormula) == "" {
		errors["investorProceedsFormula"] = "investorProceedsFormula is required"
	}
	if strings.TrimSpace(req.InvestorProceedsDiscountFormula) == "" {
		errors["investorProceedsDiscountFormula"] = "investorProceedsDiscountFormula is required"
	}
	if req.HasPartnerTranche && strings.TrimSpace(req.PartnerProceedsFormula) == "" {
		errors["partnerProceedsFormula"] = "partnerProceedsFormula is required for partner-tranche templates"
	}
	if req.MgmtFeeSplitYear != nil && *req.MgmtFeeSplitYear <= 0 {
		errors["mgmtFeeSplitYear"] = "mgmtFeeSplitYear must be a positive year count"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ValidateSetVariables validates a deal variable write request.
//
// Each variable needs an uppercase code and, when provided, an effective
// date in YYYY-MM-DD format and a positive investor ID.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateSetVariables(req request.SetVariablesRequest) error {
	errors := make(map[string]string)

	if len(req.Variables) == 0 {
		errors["variables"] = "at least one variable is required"
	}

	for i, v := range req.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		if !variableCodePattern.MatchString(v.Code) {
			errors[field+".code"] = fmt.Sprintf("invalid variable code: %s", v.Code)
		}
		if v.EffectiveDate != "" {
			if _, err := time.Parse("2006-01-02", v.EffectiveDate); err != nil {
				errors[field+".effectiveDate"] = err.Error()
			}
		}
		if v.InvestorID != nil && *v.InvestorID <= 0 {
			errors[field+".investorId"] = "investorId must be a positive integer"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ValidateAssignFormula validates a formula assignment request.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateAssignFormula(req request.AssignFormulaRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.FormulaTemplateID); err != nil {
		errors["formulaTemplateId"] = err.Error()
	}
	if req.EffectiveDate != "" {
		if _, err := time.Parse("2006-01-02", req.EffectiveDate); err != nil {
			errors["effectiveDate"] = err.Error()
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
