package model

import "time"

// VariableSource identifies how a deal variable value was produced.
type VariableSource string

const (
	SourceManual     VariableSource = "manual"
	SourceCalculated VariableSource = "calculated"
	SourceImported   VariableSource = "imported"
	SourceDefault    VariableSource = "default"
)

// FormulaTemplate is a named set of deal-economics formulas.
// The partner-proceeds formulas are only evaluated when HasPartnerTranche
// is set; the capability flags otherwise describe the template for the
// admin UI and do not change calculation behavior.
type FormulaTemplate struct {
	ID                              string    `json:"id"`
	Code                            string    `json:"code"`
	Name                            string    `json:"name"`
	Description                     string    `json:"description,omitempty"`
	NCFormula                       string    `json:"ncFormula"`
	InvestorProceedsFormula         string    `json:"investorProceedsFormula"`
	InvestorProceedsDiscountFormula string    `json:"investorProceedsDiscountFormula"`
	PartnerProceedsFormula          string    `json:"partnerProceedsFormula,omitempty"`
	PartnerProceedsDiscountFormula  string    `json:"partnerProceedsDiscountFormula,omitempty"`
	HasDualMgmtFee                  bool      `json:"hasDualMgmtFee"`
	HasPremium                      bool      `json:"hasPremium"`
	HasStructuring                  bool      `json:"hasStructuring"`
	HasOtherFees                    bool      `json:"hasOtherFees"`
	HasPartnerTranche               bool      `json:"hasPartnerTranche"`
	MgmtFeeSplitYear                *int      `json:"mgmtFeeSplitYear,omitempty"`
	IsActive                        bool      `json:"isActive"`
	CreatedAt                       time.Time `json:"createdAt,omitempty"`
	UpdatedAt                       time.Time `json:"updatedAt,omitempty"`
}

// DealVariableValue is one variable in a deal's substitution environment.
// Unique on (deal, investor, code, effective date); the latest effective
// date wins at resolution time.
type DealVariableValue struct {
	DealID        int            `json:"dealId"`
	InvestorID    *int           `json:"investorId,omitempty"`
	VariableCode  string         `json:"variableCode"`
	Value         float64        `json:"value"`
	EffectiveDate time.Time      `json:"effectiveDate"`
	Source        VariableSource `json:"source"`
}

// FormulaAssignment is one row of a deal's append-only assignment history.
// Rows are never mutated after insert; reassignment deactivates the prior
// row and appends a new one.
type FormulaAssignment struct {
	ID                string    `json:"id"`
	DealID            int       `json:"dealId"`
	FormulaTemplateID string    `json:"formulaTemplateId"`
	EffectiveDate     time.Time `json:"effectiveDate"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt,omitempty"`
}

// DealEconomics is the computed outcome of one deal-economics calculation.
// IRR is a fraction (0.12 = 12%), derived as MOIC^(1/T) - 1.
type DealEconomics struct {
	NetCapital                 float64  `json:"netCapital"`
	InvestorProceeds           float64  `json:"investorProceeds"`
	InvestorProceedsDiscounted float64  `json:"investorProceedsDiscounted"`
	PartnerProceeds            *float64 `json:"partnerProceeds,omitempty"`
	PartnerProceedsDiscounted  *float64 `json:"partnerProceedsDiscounted,omitempty"`
	TotalFees                  float64  `json:"totalFees"`
	TotalFeesDiscounted        float64  `json:"totalFeesDiscounted"`
	MOIC                       float64  `json:"moic"`
	IRR                        float64  `json:"irr"`
}

// CalculationAudit is the immutable record of one economics calculation.
// Write-once: rows are inserted and never updated or deleted.
type CalculationAudit struct {
	ID                string             `json:"id"`
	DealID            int                `json:"dealId"`
	InvestorID        *int               `json:"investorId,omitempty"`
	TransactionID     *int               `json:"transactionId,omitempty"`
	CalculationType   string             `json:"calculationType"`
	FormulaTemplateID string             `json:"formulaTemplateId"`
	FormulaUsed       string             `json:"formulaUsed"`
	VariablesSnapshot map[string]float64 `json:"variablesSnapshot"`
	Result            float64            `json:"result"`
	ResultDetails     DealEconomics      `json:"resultDetails"`
	CalculatedAt      time.Time          `json:"calculatedAt"`
}
