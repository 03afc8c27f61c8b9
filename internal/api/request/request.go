// Package request defines the JSON request bodies accepted by the API.
package request

// CreateTransactionRequest is the body for creating or previewing a
// transaction. GrossCapital is optional; it defaults to units * unitPrice.
type CreateTransactionRequest struct {
	DealID       int     `json:"dealId"`
	InvestorID   int     `json:"investorId"`
	Date         string  `json:"date"`
	Units        float64 `json:"units"`
	UnitPrice    float64 `json:"unitPrice"`
	GrossCapital float64 `json:"grossCapital"`
}

// BulkCreateTransactionsRequest is the body for bulk transaction creation.
type BulkCreateTransactionsRequest struct {
	Transactions []CreateTransactionRequest `json:"transactions"`
	StopOnError  bool                       `json:"stopOnError"`
}

// BatchCalculateRequest is the body for batch fee calculation.
type BatchCalculateRequest struct {
	TransactionIDs []int `json:"transactionIds"`
}

// ImportCSVRequest is the JSON-wrapped form of a CSV upload. Raw text/csv
// and multipart uploads are also accepted on the same endpoint.
type ImportCSVRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ApplyImportRequest is the body for applying a staged import.
type ApplyImportRequest struct {
	DryRun bool `json:"dryRun"`
}

// FormulaTemplateRequest is the body for creating or updating a formula
// template.
type FormulaTemplateRequest struct {
	Code                            string `json:"code"`
	Name                            string `json:"name"`
	Description                     string `json:"description"`
	NCFormula                       string `json:"ncFormula"`
	InvestorProceedsFormula         string `json:"investorProceedsFormula"`
	InvestorProceedsDiscountFormula string `json:"investorProceedsDiscountFormula"`
	PartnerProceedsFormula          string `json:"partnerProceedsFormula"`
	PartnerProceedsDiscountFormula  string `json:"partnerProceedsDiscountFormula"`
	HasDualMgmtFee                  bool   `json:"hasDualMgmtFee"`
	HasPremium                      bool   `json:"hasPremium"`
	HasStructuring                  bool   `json:"hasStructuring"`
	HasOtherFees                    bool   `json:"hasOtherFees"`
	HasPartnerTranche               bool   `json:"hasPartnerTranche"`
	MgmtFeeSplitYear                *int   `json:"mgmtFeeSplitYear"`
}

// VariableValueRequest is one variable value in a SetVariablesRequest.
type VariableValueRequest struct {
	Code          string  `json:"code"`
	Value         float64 `json:"value"`
	InvestorID    *int    `json:"investorId"`
	EffectiveDate string  `json:"effectiveDate"`
	Source        string  `json:"source"`
}

// SetVariablesRequest is the body for writing deal variable values.
type SetVariablesRequest struct {
	Variables []VariableValueRequest `json:"variables"`
}

// AssignFormulaRequest is the body for assigning a formula template to a deal.
type AssignFormulaRequest struct {
	FormulaTemplateID string `json:"formulaTemplateId"`
	EffectiveDate     string `json:"effectiveDate"`
}

// CalculateEconomicsRequest is the body for a deal-economics calculation.
type CalculateEconomicsRequest struct {
	InvestorID    *int `json:"investorId"`
	TransactionID *int `json:"transactionId"`
}

// TestFormulaRequest is the body for evaluating an ad-hoc formula.
type TestFormulaRequest struct {
	Formula   string             `json:"formula"`
	Variables map[string]float64 `json:"variables"`
}
