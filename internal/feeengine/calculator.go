// Package feeengine implements the pure computation core of the fee
// system: the tiered fee calculator and the CSV import validator. Nothing
// in this package touches the database; services construct inputs, call in,
// and persist the results.
package feeengine

import (
	"fmt"
	"sort"
	"time"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// Calculator computes fee line items for a transaction against one fee
// profile. Construct a fresh Calculator per calculation; it holds no state
// beyond the profile snapshot.
type Calculator struct {
	profile model.FeeProfile
}

// NewCalculator creates a Calculator for the given fee profile.
func NewCalculator(profile model.FeeProfile) *Calculator {
	return &Calculator{profile: profile}
}

// Calculate computes all fees for a transaction context.
//
// Component configs are evaluated first, filtered by deal type. For LEGACY
// profiles with a selected tier, the tier's management, performance, admin
// and structuring rates are applied on top. A zero gross capital yields an
// empty result with zero totals and no division errors.
func (c *Calculator) Calculate(ctx model.TransactionFeeContext) model.FeeCalculationResult {
	var components []model.FeeLineItem
	var warnings []string

	tier, tierFound := c.applicableTier(ctx.GrossCapital)

	for _, config := range c.profile.Config.Components {
		if !appliesTo(config, ctx.DealType) {
			continue
		}
		if item, ok := c.calculateComponent(config, ctx); ok {
			components = append(components, item)
		}
	}

	if c.profile.Kind == model.ProfileKindLegacy && tierFound {
		if tier.ManagementFee > 0 {
			components = append(components, lineItem(
				model.ComponentManagement, model.BasisGrossCapital,
				ctx.GrossCapital, tier.ManagementFee,
				ctx.GrossCapital*tier.ManagementFee, ""))
		}

		// Performance fee only applies when the context carries a profit
		// figure at all; a missing profit suppresses the line entirely.
		if tier.PerformanceFee > 0 && ctx.Profit != nil {
			fee := performanceFee(*ctx.Profit, tier.PerformanceFee,
				c.profile.Config.HurdleRate, c.profile.Config.CatchUp)
			if fee > 0 {
				components = append(components, lineItem(
					model.ComponentPerformance, model.BasisProfit,
					*ctx.Profit, tier.PerformanceFee, fee, "After hurdle rate"))
			}
		}

		if tier.AdminFee > 0 {
			components = append(components, lineItem(
				model.ComponentAdmin, model.BasisGrossCapital,
				ctx.GrossCapital, tier.AdminFee,
				ctx.GrossCapital*tier.AdminFee, ""))
		}

		if tier.StructuringFee > 0 {
			components = append(components, lineItem(
				model.ComponentStructuring, model.BasisGrossCapital,
				ctx.GrossCapital, tier.StructuringFee,
				ctx.GrossCapital*tier.StructuringFee, ""))
		}
	}

	var totalFees float64
	for _, item := range components {
		totalFees += item.CalculatedAmount
	}
	netAmount := ctx.GrossCapital - totalFees
	effectiveRate := 0.0
	if ctx.GrossCapital > 0 {
		effectiveRate = totalFees / ctx.GrossCapital
	}

	return model.FeeCalculationResult{
		TransactionID: ctx.TransactionID,
		DealID:        ctx.DealID,
		Components:    components,
		TotalFees:     totalFees,
		NetAmount:     netAmount,
		EffectiveRate: effectiveRate,
		Metadata: model.CalculationMetadata{
			ProfileUsed:     c.profile.Name,
			CalculationDate: time.Now().UTC(),
			Warnings:        warnings,
		},
	}
}

// calculateComponent evaluates one component config. Components whose basis
// amount resolves to zero are skipped.
func (c *Calculator) calculateComponent(config model.FeeComponentConfig, ctx model.TransactionFeeContext) (model.FeeLineItem, bool) {
	basisAmount := basisAmount(config.Basis, ctx)
	if basisAmount == 0 {
		return model.FeeLineItem{}, false
	}

	var amount float64
	if config.IsPercent {
		amount = basisAmount * config.Rate
	} else {
		amount = config.FixedAmount
	}

	return lineItem(config.Component, config.Basis, basisAmount, config.Rate, amount, ""), true
}

// basisAmount resolves the amount a component's rate applies against.
// COMMITTED_CAPITAL and DEPLOYED_CAPITAL are simplified to gross capital;
// commitment and deployment schedules live outside the engine.
func basisAmount(basis model.FeeBasis, ctx model.TransactionFeeContext) float64 {
	switch basis {
	case model.BasisGrossCapital:
		return ctx.GrossCapital
	case model.BasisNetCapital:
		if ctx.NetCapital != nil {
			return *ctx.NetCapital
		}
		return ctx.GrossCapital
	case model.BasisCommittedCapital, model.BasisDeployedCapital:
		return ctx.GrossCapital
	case model.BasisNAV:
		if ctx.CurrentNAV != nil {
			return *ctx.CurrentNAV
		}
		return 0
	case model.BasisProfit:
		if ctx.Profit != nil && *ctx.Profit > 0 {
			return *ctx.Profit
		}
		return 0
	case model.BasisFixed:
		return 1
	default:
		return 0
	}
}

// applicableTier selects the tier for a transaction amount: tiers sorted by
// threshold descending, first tier whose threshold <= amount wins, falling
// back to the lowest tier. The second return is false when the profile has
// no tiers at all.
func (c *Calculator) applicableTier(amount float64) (model.FeeTier, bool) {
	tiers := c.profile.Config.Tiers
	if len(tiers) == 0 {
		return model.FeeTier{}, false
	}

	sorted := make([]model.FeeTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })

	for _, tier := range sorted {
		if amount >= tier.Threshold {
			return tier, true
		}
	}
	return sorted[len(sorted)-1], true
}

// performanceFee computes the performance fee with hurdle-rate and catch-up
// handling. With no hurdle the fee is a flat cut of profit. Above the
// hurdle, catch-up lets the fee-taker recover its share of the hurdle
// amount before the normal rate applies to the remainder.
func performanceFee(profit, rate, hurdleRate float64, catchUp bool) float64 {
	if profit <= 0 {
		return 0
	}

	if hurdleRate == 0 {
		return profit * rate
	}

	hurdleAmount := profit * hurdleRate
	excessProfit := profit - hurdleAmount
	if excessProfit <= 0 {
		return 0
	}

	if catchUp {
		catchUpAmount := hurdleAmount * rate
		remaining := excessProfit - catchUpAmount
		if remaining > 0 {
			return catchUpAmount + remaining*rate
		}
		return excessProfit
	}

	return excessProfit * rate
}

// appliesTo reports whether a component config applies to the given deal
// type. An empty AppliesTo list means the component applies to all types.
func appliesTo(config model.FeeComponentConfig, dealType model.DealType) bool {
	if len(config.AppliesTo) == 0 {
		return true
	}
	for _, t := range config.AppliesTo {
		if t == dealType {
			return true
		}
	}
	return false
}

func lineItem(component model.FeeComponent, basis model.FeeBasis, basisAmount, rate, amount float64, notes string) model.FeeLineItem {
	return model.FeeLineItem{
		Component:        component,
		Basis:            basis,
		BasisAmount:      basisAmount,
		Rate:             rate,
		CalculatedAmount: amount,
		Notes:            notes,
	}
}

// ValidateProfile checks a fee profile configuration and returns every
// problem found: missing name, duplicate tier thresholds, or tier rates
// outside [0,1].
func ValidateProfile(profile model.FeeProfile) []string {
	var errs []string

	if profile.Name == "" {
		errs = append(errs, "profile name is required")
	}

	if len(profile.Config.Tiers) > 0 {
		seen := make(map[float64]bool)
		for _, tier := range profile.Config.Tiers {
			if seen[tier.Threshold] {
				errs = append(errs, "duplicate tier thresholds found")
				break
			}
			seen[tier.Threshold] = true
		}

		for _, tier := range profile.Config.Tiers {
			if tier.ManagementFee < 0 || tier.ManagementFee > 1 {
				errs = append(errs, fmt.Sprintf("management fee %v must be between 0 and 1", tier.ManagementFee))
			}
			if tier.PerformanceFee < 0 || tier.PerformanceFee > 1 {
				errs = append(errs, fmt.Sprintf("performance fee %v must be between 0 and 1", tier.PerformanceFee))
			}
		}
	}

	return errs
}
