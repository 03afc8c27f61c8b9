package model

import "time"

// Transaction represents an investor subscription into a deal, with its
// fee fields as persisted. Used internally for calculations and data
// processing.
type Transaction struct {
	ID                    int       `json:"id"`
	DealID                int       `json:"dealId"`
	InvestorID            int       `json:"investorId"`
	Date                  time.Time `json:"date"`
	Units                 float64   `json:"units"`
	UnitPrice             float64   `json:"unitPrice"`
	GrossCapital          float64   `json:"grossCapital"`
	InitialNetCapital     *float64  `json:"initialNetCapital,omitempty"`
	ManagementFeePercent  float64   `json:"managementFeePercent"`
	PerformanceFeePercent float64   `json:"performanceFeePercent"`
	StructuringFeePercent float64   `json:"structuringFeePercent"`
	PremiumFeePercent     float64   `json:"premiumFeePercent"`
	AdminFee              float64   `json:"adminFee"`
	CreatedAt             time.Time `json:"createdAt,omitempty"`
}

// TransactionOutput is a created or previewed transaction enriched with
// its full fee breakdown for API responses.
type TransactionOutput struct {
	TransactionID int                  `json:"transactionId"`
	DealID        int                  `json:"dealId"`
	InvestorID    int                  `json:"investorId"`
	GrossCapital  float64              `json:"grossCapital"`
	TotalFees     float64              `json:"totalFees"`
	NetCapital    float64              `json:"netCapital"`
	FeeBreakdown  FeeCalculationResult `json:"feeBreakdown"`
}
