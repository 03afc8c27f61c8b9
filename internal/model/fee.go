package model

import "time"

// FeeComponent identifies a fee line item kind.
type FeeComponent string

// Fee components recognized by the calculator and the CSV import.
const (
	ComponentManagement  FeeComponent = "MANAGEMENT"
	ComponentPerformance FeeComponent = "PERFORMANCE"
	ComponentStructuring FeeComponent = "STRUCTURING"
	ComponentAdmin       FeeComponent = "ADMIN"
	ComponentPremium     FeeComponent = "PREMIUM"
	ComponentAdvisory    FeeComponent = "ADVISORY"
	ComponentPlacement   FeeComponent = "PLACEMENT"
	ComponentMonitoring  FeeComponent = "MONITORING"
)

// FeeComponents lists every valid component in display order.
var FeeComponents = []FeeComponent{
	ComponentManagement, ComponentPerformance, ComponentStructuring,
	ComponentAdmin, ComponentPremium, ComponentAdvisory,
	ComponentPlacement, ComponentMonitoring,
}

// FeeBasis identifies the amount a fee rate is applied against.
type FeeBasis string

// Fee bases recognized by the calculator and the CSV import.
const (
	BasisGrossCapital     FeeBasis = "GROSS_CAPITAL"
	BasisNetCapital       FeeBasis = "NET_CAPITAL"
	BasisCommittedCapital FeeBasis = "COMMITTED_CAPITAL"
	BasisDeployedCapital  FeeBasis = "DEPLOYED_CAPITAL"
	BasisNAV              FeeBasis = "NAV"
	BasisProfit           FeeBasis = "PROFIT"
	BasisFixed            FeeBasis = "FIXED"
)

// FeeBases lists every valid basis in display order.
var FeeBases = []FeeBasis{
	BasisGrossCapital, BasisNetCapital, BasisCommittedCapital,
	BasisDeployedCapital, BasisNAV, BasisProfit, BasisFixed,
}

// DealType classifies a deal for fee purposes.
type DealType string

const (
	DealTypePrimary   DealType = "PRIMARY"
	DealTypeSecondary DealType = "SECONDARY"
	DealTypeAdvisory  DealType = "ADVISORY"
	DealTypeCoinvest  DealType = "COINVEST"
	DealTypeFund      DealType = "FUND"
)

// ProfileKind distinguishes legacy tier-driven profiles from modern
// component-driven ones.
type ProfileKind string

const (
	ProfileKindLegacy ProfileKind = "LEGACY"
	ProfileKindModern ProfileKind = "MODERN"
)

// Crystallization is how often performance fees crystallize.
type Crystallization string

const (
	CrystallizationQuarterly Crystallization = "QUARTERLY"
	CrystallizationAnnual    Crystallization = "ANNUAL"
	CrystallizationExit      Crystallization = "EXIT"
)

// FeeTier is a single threshold tier within a fee profile.
// Rates are decimals in [0,1]; thresholds are unique within a profile.
type FeeTier struct {
	Threshold      float64 `json:"threshold"`
	ManagementFee  float64 `json:"managementFee"`
	PerformanceFee float64 `json:"performanceFee"`
	AdminFee       float64 `json:"adminFee,omitempty"`
	StructuringFee float64 `json:"structuringFee,omitempty"`
}

// FeeComponentConfig is an itemized fee component on a modern profile.
// When AppliesTo is empty the component applies to all deal types.
type FeeComponentConfig struct {
	Component   FeeComponent `json:"component"`
	Basis       FeeBasis     `json:"basis"`
	Rate        float64      `json:"rate"`
	IsPercent   bool         `json:"isPercent"`
	FixedAmount float64      `json:"fixedAmount,omitempty"`
	Precedence  int          `json:"precedence"`
	AppliesTo   []DealType   `json:"appliesTo,omitempty"`
}

// FeeConfiguration holds the full fee schedule carried by a profile.
type FeeConfiguration struct {
	Tiers           []FeeTier            `json:"tiers"`
	HurdleRate      float64              `json:"hurdleRate,omitempty"`
	CatchUp         bool                 `json:"catchUp,omitempty"`
	HighWaterMark   bool                 `json:"highWaterMark,omitempty"`
	Crystallization Crystallization      `json:"crystallization,omitempty"`
	Components      []FeeComponentConfig `json:"components"`
}

// FeeProfile is a named, persisted fee schedule applied to deals.
type FeeProfile struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Kind     ProfileKind      `json:"kind"`
	DealType DealType         `json:"dealType"`
	Config   FeeConfiguration `json:"config"`
}

// TransactionFeeContext carries the inputs for a single fee calculation.
// Constructed per calculation, never persisted.
type TransactionFeeContext struct {
	TransactionID int
	DealID        int
	InvestorID    int
	Date          time.Time
	GrossCapital  float64
	NetCapital    *float64
	Units         float64
	UnitPrice     float64
	DealType      DealType
	PriorNAV      *float64
	CurrentNAV    *float64
	Profit        *float64
}

// FeeLineItem is one computed fee component within a calculation result.
type FeeLineItem struct {
	Component        FeeComponent `json:"component"`
	Basis            FeeBasis     `json:"basis"`
	BasisAmount      float64      `json:"basisAmount"`
	Rate             float64      `json:"rate"`
	CalculatedAmount float64      `json:"calculatedAmount"`
	Notes            string       `json:"notes,omitempty"`
}

// CalculationMetadata records how a fee calculation was produced.
type CalculationMetadata struct {
	ProfileUsed     string    `json:"profileUsed"`
	CalculationDate time.Time `json:"calculationDate"`
	Warnings        []string  `json:"warnings,omitempty"`
}

// FeeCalculationResult is the full outcome of one fee calculation.
type FeeCalculationResult struct {
	TransactionID int                 `json:"transactionId"`
	DealID        int                 `json:"dealId"`
	Components    []FeeLineItem       `json:"components"`
	TotalFees     float64             `json:"totalFees"`
	NetAmount     float64             `json:"netAmount"`
	EffectiveRate float64             `json:"effectiveRate"`
	Metadata      CalculationMetadata `json:"metadata"`
}

// FeeApplicationRecord is the persisted audit trail of an applied fee,
// keyed by (transaction, deal, component). TransactionID is nil for
// deal-level adjustments, which are keyed by (deal, component) instead.
type FeeApplicationRecord struct {
	ID            string       `json:"id"`
	TransactionID *int         `json:"transactionId,omitempty"`
	DealID        int          `json:"dealId"`
	Component     FeeComponent `json:"component"`
	Amount        float64      `json:"amount"`
	Percent       float64      `json:"percent"`
	Notes         string       `json:"notes,omitempty"`
	Applied       bool         `json:"applied"`
	CreatedAt     time.Time    `json:"createdAt,omitempty"`
	UpdatedAt     time.Time    `json:"updatedAt,omitempty"`
}

// CSVImportRow is a parsed and validated fee-adjustment row.
// Exactly one of Percent/Amount is set on a valid row.
type CSVImportRow struct {
	DealID        int          `json:"dealId"`
	TransactionID *int         `json:"transactionId,omitempty"`
	Component     FeeComponent `json:"component"`
	Basis         FeeBasis     `json:"basis,omitempty"`
	Percent       *float64     `json:"percent,omitempty"`
	Amount        *float64     `json:"amount,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	SourceFile    string       `json:"sourceFile,omitempty"`
}

// CSVValidationError is one field-level failure in an uploaded CSV.
// Row 0 identifies file- or header-level failures.
type CSVValidationError struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
	Error string `json:"error"`
}
