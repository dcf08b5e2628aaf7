package model

import (
	"testing"

	"fundcast/domain/campaign"
)

func validParams() PlatformParams {
	return PlatformParams{
		C0: 2, C1: -0.5,
		AlphaUnder: 0.6, Beta0Under: 4, Beta1Under: 1e-5,
		AlphaMet: 0.8, Beta0Met: 5, Beta1Met: -1e-6,
	}
}

func TestPlatformCoefficients_Derivation(t *testing.T) {
	fit := LogisticFit{
		Intercept:      Coefficient{Estimate: 1.0},
		LogGoalSlope:   Coefficient{Estimate: -0.4},
		PlatformEffect: Coefficient{Estimate: 0.7},
		Interaction:    Coefficient{Estimate: -0.1},
	}

	c0, c1 := fit.PlatformCoefficients(campaign.Indiegogo)
	if c0 != 1.0 || c1 != -0.4 {
		t.Errorf("indiegogo uses the base terms alone, got c0=%v c1=%v", c0, c1)
	}

	c0, c1 = fit.PlatformCoefficients(campaign.Kickstarter)
	if c0 != 1.7 || c1 != -0.5 {
		t.Errorf("kickstarter adds effect and interaction deltas, got c0=%v c1=%v", c0, c1)
	}
}

func TestFittedModel_Validate(t *testing.T) {
	m := FittedModel{Kickstarter: validParams(), Indiegogo: validParams()}
	if err := m.Validate(); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}

	// beta1 may be any sign, but alpha and beta0 must be strictly positive.
	broken := m
	broken.Indiegogo.AlphaMet = 0
	if err := broken.Validate(); err == nil {
		t.Error("zero alpha must fail validation")
	}

	broken = m
	broken.Kickstarter.Beta0Under = -1
	if err := broken.Validate(); err == nil {
		t.Error("negative beta0 must fail validation")
	}
}

func TestFittedModel_ParamsFor(t *testing.T) {
	m := FittedModel{Kickstarter: validParams()}
	if _, err := m.ParamsFor(campaign.Kickstarter); err != nil {
		t.Errorf("known platform rejected: %v", err)
	}
	if _, err := m.ParamsFor(campaign.Platform("gofundme")); err == nil {
		t.Error("unknown platform must be rejected")
	}
}

func TestGammaPosterior_Validate(t *testing.T) {
	p := GammaPosterior{
		Platform: campaign.Kickstarter,
		Outcome:  campaign.OutcomeMet,
		Alpha:    ParamEstimate{Median: 0.8, Lo: 0.7, Hi: 0.9},
		Beta0:    ParamEstimate{Median: 5, Lo: 4, Hi: 6},
		Beta1:    ParamEstimate{Median: -1e-6, Lo: -2e-6, Hi: 0},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid posterior rejected: %v", err)
	}

	p.Alpha.Median = -0.1
	if err := p.Validate(); err == nil {
		t.Error("negative alpha median must fail validation")
	}
}
