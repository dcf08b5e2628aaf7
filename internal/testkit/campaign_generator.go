package testkit

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
)

// GammaTruth is the ground-truth Gamma rate model for one outcome branch.
type GammaTruth struct {
	Alpha float64
	Beta0 float64
	Beta1 float64
}

// PlatformTruth is the ground truth for one platform: the logistic pair and
// both conditional branches.
type PlatformTruth struct {
	C0    float64
	C1    float64
	Under GammaTruth
	Met   GammaTruth
}

// CampaignGeneratorConfig configures the synthetic campaign generator.
type CampaignGeneratorConfig struct {
	Records     int
	Seed        int64
	MinGoal     float64 // goals drawn log-uniform in [MinGoal, MaxGoal]
	MaxGoal     float64
	Kickstarter PlatformTruth
	Indiegogo   PlatformTruth
}

// DefaultCampaignConfig returns ground truth with realistic shape: larger
// goals are less likely to be met, missed campaigns raise a small fraction,
// met campaigns overshoot modestly.
func DefaultCampaignConfig() CampaignGeneratorConfig {
	return CampaignGeneratorConfig{
		Records: 4000,
		Seed:    42,
		MinGoal: 100,
		MaxGoal: 100000,
		Kickstarter: PlatformTruth{
			C0: 3.0, C1: -0.8,
			Under: GammaTruth{Alpha: 0.6, Beta0: 4.0, Beta1: 1e-5},
			Met:   GammaTruth{Alpha: 0.8, Beta0: 5.0, Beta1: 1e-6},
		},
		Indiegogo: PlatformTruth{
			C0: 2.0, C1: -0.7,
			Under: GammaTruth{Alpha: 0.5, Beta0: 3.0, Beta1: 1e-5},
			Met:   GammaTruth{Alpha: 0.7, Beta0: 6.0, Beta1: 1e-6},
		},
	}
}

// CampaignGenerator produces synthetic campaign records whose true model is
// known, so fitting runs can be checked against ground truth.
type CampaignGenerator struct {
	config CampaignGeneratorConfig
	rng    *rand.Rand
}

// NewCampaignGenerator creates a deterministic generator for the config.
func NewCampaignGenerator(config CampaignGeneratorConfig) *CampaignGenerator {
	return &CampaignGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate produces the configured number of records, alternating platforms.
func (g *CampaignGenerator) Generate() campaign.Dataset {
	records := make(campaign.Dataset, 0, g.config.Records)
	for i := 0; i < g.config.Records; i++ {
		platform := campaign.Indiegogo
		truth := g.config.Indiegogo
		if i%2 == 0 {
			platform = campaign.Kickstarter
			truth = g.config.Kickstarter
		}
		records = append(records, g.generateRecord(platform, truth))
	}
	return records
}

func (g *CampaignGenerator) generateRecord(platform campaign.Platform, truth PlatformTruth) campaign.Record {
	logGoal := math.Log10(g.config.MinGoal) +
		g.rng.Float64()*(math.Log10(g.config.MaxGoal)-math.Log10(g.config.MinGoal))
	goal := math.Pow(10, logGoal)

	pMet := 1 / (1 + math.Exp(-(truth.C0 + truth.C1*logGoal)))
	met := g.rng.Float64() < pMet

	var frac float64
	if met {
		frac = campaign.MetGoalOffset + g.gammaDraw(truth.Met, goal)
		if frac < 1 {
			frac = 1
		}
	} else {
		// Truncate the under branch below 1 so the outcome flag stays
		// consistent with the raised fraction.
		frac = g.gammaDraw(truth.Under, goal) - campaign.UnderGoalEpsilon
		for attempt := 0; frac >= 1 && attempt < 50; attempt++ {
			frac = g.gammaDraw(truth.Under, goal) - campaign.UnderGoalEpsilon
		}
		if frac >= 1 {
			frac = 0.99
		}
		if frac < 0 {
			frac = 0
		}
	}

	return campaign.Record{
		Platform:   platform,
		GoalUSD:    goal,
		RaisedFrac: frac,
		MetGoal:    met,
	}
}

// gammaDraw samples via inverse-CDF so the generator needs only one seeded
// uniform stream.
func (g *CampaignGenerator) gammaDraw(truth GammaTruth, goal float64) float64 {
	dist := distuv.Gamma{Alpha: truth.Alpha, Beta: truth.Beta0 + truth.Beta1*goal}
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	return dist.Quantile(u)
}

// TrueModel returns the generator's ground truth packaged as a FittedModel,
// for exercising the predictor without running a fit.
func (g *CampaignGenerator) TrueModel() model.FittedModel {
	pack := func(t PlatformTruth) model.PlatformParams {
		return model.PlatformParams{
			C0: t.C0, C1: t.C1,
			AlphaUnder: t.Under.Alpha, Beta0Under: t.Under.Beta0, Beta1Under: t.Under.Beta1,
			AlphaMet: t.Met.Alpha, Beta0Met: t.Met.Beta0, Beta1Met: t.Met.Beta1,
		}
	}
	return model.FittedModel{
		Kickstarter: pack(g.config.Kickstarter),
		Indiegogo:   pack(g.config.Indiegogo),
	}
}
