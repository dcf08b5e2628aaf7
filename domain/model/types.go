package model

import (
	"fmt"
	"math"

	"fundcast/domain/campaign"
)

// Coefficient is one logistic regression coefficient with its diagnostic
// standard error and Wald p-value. Only the estimate feeds downstream logic.
type Coefficient struct {
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	PValue   float64 `json:"p_value"`
}

// LogisticFit holds the four coefficients of the goal-attainment model
//
//	met_goal ~ log10(goal) * is_kickstarter
//
// estimated once over both platforms. The Indiegogo terms are estimated
// directly; the Kickstarter terms are deltas on top of them.
type LogisticFit struct {
	Intercept      Coefficient `json:"intercept"`
	LogGoalSlope   Coefficient `json:"log_goal_slope"`
	PlatformEffect Coefficient `json:"platform_effect"`
	Interaction    Coefficient `json:"interaction"`

	Iterations int `json:"iterations"`
}

// PlatformCoefficients derives the per-platform intercept/slope pair by
// linear combination of the interaction model's coefficients.
func (f LogisticFit) PlatformCoefficients(p campaign.Platform) (c0, c1 float64) {
	c0 = f.Intercept.Estimate
	c1 = f.LogGoalSlope.Estimate
	if p == campaign.Kickstarter {
		c0 += f.PlatformEffect.Estimate
		c1 += f.Interaction.Estimate
	}
	return c0, c1
}

// ParamEstimate is a posterior summary for one parameter: the median point
// estimate with a 95% credible interval.
type ParamEstimate struct {
	Median float64 `json:"median"`
	Lo     float64 `json:"q2_5"`
	Hi     float64 `json:"q97_5"`
}

// GammaPosterior is the compiled posterior for one (platform, outcome)
// partition's Gamma rate model
//
//	raised_frac ~ Gamma(alpha, beta0 + beta1*goal)
//
// Immutable once compiled.
type GammaPosterior struct {
	Platform campaign.Platform `json:"platform"`
	Outcome  campaign.Outcome  `json:"outcome"`

	Alpha ParamEstimate `json:"alpha"`
	Beta0 ParamEstimate `json:"beta0"`
	Beta1 ParamEstimate `json:"beta1"`

	PooledDraws int `json:"pooled_draws"`
}

// Validate checks the Gamma parameterization invariants on the point
// estimates: shape and rate intercept strictly positive, slope any sign.
func (gp GammaPosterior) Validate() error {
	if !gp.Platform.Valid() || !gp.Outcome.Valid() {
		return fmt.Errorf("posterior has invalid partition tags %q/%q", gp.Platform, gp.Outcome)
	}
	for name, v := range map[string]float64{
		"alpha": gp.Alpha.Median,
		"beta0": gp.Beta0.Median,
	} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s/%s: %s must be strictly positive, got %v", gp.Platform, gp.Outcome, name, v)
		}
	}
	if math.IsNaN(gp.Beta1.Median) || math.IsInf(gp.Beta1.Median, 0) {
		return fmt.Errorf("%s/%s: beta1 must be finite, got %v", gp.Platform, gp.Outcome, gp.Beta1.Median)
	}
	return nil
}

// PlatformParams is everything the composite predictor needs for one
// platform: the derived logistic pair plus both conditional Gamma triples.
type PlatformParams struct {
	C0 float64 `json:"c0" db:"c0"`
	C1 float64 `json:"c1" db:"c1"`

	AlphaUnder float64 `json:"alpha_under" db:"alpha_under"`
	AlphaMet   float64 `json:"alpha_met" db:"alpha_met"`
	Beta0Under float64 `json:"beta0_under" db:"beta0_under"`
	Beta0Met   float64 `json:"beta0_met" db:"beta0_met"`
	Beta1Under float64 `json:"beta1_under" db:"beta1_under"`
	Beta1Met   float64 `json:"beta1_met" db:"beta1_met"`
}

// GammaParams returns the (alpha, beta0, beta1) triple for an outcome branch.
func (pp PlatformParams) GammaParams(o campaign.Outcome) (alpha, beta0, beta1 float64) {
	if o == campaign.OutcomeMet {
		return pp.AlphaMet, pp.Beta0Met, pp.Beta1Met
	}
	return pp.AlphaUnder, pp.Beta0Under, pp.Beta1Under
}

func (pp PlatformParams) validate(p campaign.Platform) error {
	fields := map[string]float64{
		"c0": pp.C0, "c1": pp.C1,
		"beta1_under": pp.Beta1Under, "beta1_met": pp.Beta1Met,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %s must be finite, got %v", p, name, v)
		}
	}
	positive := map[string]float64{
		"alpha_under": pp.AlphaUnder, "alpha_met": pp.AlphaMet,
		"beta0_under": pp.Beta0Under, "beta0_met": pp.Beta0Met,
	}
	for name, v := range positive {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %s must be strictly positive, got %v", p, name, v)
		}
	}
	return nil
}

// FittedModel is the immutable aggregate published by a fitting run and the
// only object the composite predictor depends on. A fixed-size tagged
// structure: unknown platforms cannot be represented.
type FittedModel struct {
	Kickstarter PlatformParams `json:"kickstarter"`
	Indiegogo   PlatformParams `json:"indiegogo"`
}

// ParamsFor returns the parameter set for a platform.
func (m FittedModel) ParamsFor(p campaign.Platform) (PlatformParams, error) {
	switch p {
	case campaign.Kickstarter:
		return m.Kickstarter, nil
	case campaign.Indiegogo:
		return m.Indiegogo, nil
	default:
		return PlatformParams{}, fmt.Errorf("unknown platform %q", p)
	}
}

// Validate checks that every parameter set is fully populated and satisfies
// the Gamma invariants. A model must pass before being published for queries.
func (m FittedModel) Validate() error {
	if err := m.Kickstarter.validate(campaign.Kickstarter); err != nil {
		return err
	}
	return m.Indiegogo.validate(campaign.Indiegogo)
}
