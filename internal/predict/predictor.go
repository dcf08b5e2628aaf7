// Package predict implements the composite survival predictor: a pure
// function over an immutable FittedModel, safely callable concurrently.
package predict

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal/errors"
)

// Survival returns the probability that a campaign with the given goal on
// the given platform raises at least target dollars.
//
// The discrete goal-attainment mixture and the two conditional Gamma tails
// are combined per the platform's payout rule: Kickstarter (all-or-nothing)
// counts only the met-goal branch; Indiegogo (keep-what-you-raise) adds the
// under-goal branch weighted by the miss probability.
func Survival(target, goal float64, platform campaign.Platform, m model.FittedModel) (float64, error) {
	if err := validateQuery(target, goal, platform); err != nil {
		return 0, err
	}
	// Raising at least zero is certain regardless of payout rule.
	if target == 0 {
		return 1, nil
	}

	params, err := m.ParamsFor(platform)
	if err != nil {
		return 0, errors.InvalidQuery(err.Error())
	}

	frac := target / goal
	pMet := sigmoid(params.C0 + params.C1*math.Log10(goal))
	isUnder := target < goal

	// Under-goal branch: upper tail of the conditional raised-fraction
	// distribution. Once target >= goal, missing the goal is no longer a
	// way to reach the target, so the branch contributes zero mass.
	cdfUnder := 0.0
	if isUnder {
		alpha, beta0, beta1 := params.GammaParams(campaign.OutcomeUnder)
		cdfUnder = gammaUpperTail(frac, alpha, beta0+beta1*goal)
	}

	// Met-goal branch: any met campaign already exceeds an under-goal
	// target; above the goal the excess-over-goal variable's tail applies.
	cdfMet := 1.0
	if !isUnder {
		alpha, beta0, beta1 := params.GammaParams(campaign.OutcomeMet)
		cdfMet = gammaUpperTail(frac-1, alpha, beta0+beta1*goal)
	}

	var survival float64
	switch platform {
	case campaign.Kickstarter:
		survival = pMet * cdfMet
	case campaign.Indiegogo:
		survival = pMet*cdfMet + (1-pMet)*cdfUnder
	}
	return clamp01(survival), nil
}

// Quantile inverts the Gamma CDF for one outcome branch, answering "what
// raised amount corresponds to the p-th percentile given the campaign
// met/missed its goal". It is the branch quantile, not the inverse of the
// unconditional survival mixture.
func Quantile(p, goal float64, platform campaign.Platform, outcome campaign.Outcome, m model.FittedModel) (float64, error) {
	if err := validateQuery(0, goal, platform); err != nil {
		return 0, err
	}
	if p < 0 || p >= 1 || math.IsNaN(p) {
		return 0, errors.InvalidQuery("probability must lie in [0,1)")
	}
	if !outcome.Valid() {
		return 0, errors.InvalidQuery("unknown outcome branch")
	}

	params, err := m.ParamsFor(platform)
	if err != nil {
		return 0, errors.InvalidQuery(err.Error())
	}
	alpha, beta0, beta1 := params.GammaParams(outcome)
	rate := beta0 + beta1*goal
	if rate <= 0 {
		return 0, errors.InvalidQuery("goal is beyond the fitted range of this outcome branch")
	}
	dist := distuv.Gamma{Alpha: alpha, Beta: rate}
	q := dist.Quantile(p)

	// Undo the support shift: the met-goal branch models excess over goal.
	if outcome == campaign.OutcomeMet {
		return goal * (1 + q), nil
	}
	return goal * q, nil
}

func validateQuery(target, goal float64, platform campaign.Platform) error {
	if goal <= 0 || math.IsNaN(goal) || math.IsInf(goal, 0) {
		return errors.InvalidQuery("goal must be positive and finite")
	}
	if target < 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return errors.InvalidQuery("target must be nonnegative and finite")
	}
	if !platform.Valid() {
		return errors.InvalidQuery("unknown platform")
	}
	return nil
}

// gammaUpperTail evaluates P(X >= x) for X ~ Gamma(alpha, rate), guarding
// the support boundary against floating-point excursions. A negative slope
// can push the effective rate to zero or below at goals past the fitted
// range; the tail limit as the rate approaches zero from above is 1, so the
// guard keeps the result defined instead of handing gonum an invalid rate.
func gammaUpperTail(x, alpha, rate float64) float64 {
	if x <= 0 || rate <= 0 {
		return 1
	}
	dist := distuv.Gamma{Alpha: alpha, Beta: rate}
	return clamp01(dist.Survival(x))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
