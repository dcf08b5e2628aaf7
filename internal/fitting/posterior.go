package fitting

import (
	"math"

	"github.com/montanaflynn/stats"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal/errors"
)

// CompilePosterior pools every chain's draws and reduces them to the
// 2.5/50/97.5 percentiles per parameter. Pooling order is irrelevant: this
// is a distributional summary, not a time series. Deterministic for a fixed
// input sample set.
func CompilePosterior(platform campaign.Platform, outcome campaign.Outcome, chains []ChainResult) (*model.GammaPosterior, error) {
	total := 0
	for _, c := range chains {
		total += len(c.Draws)
	}
	if total == 0 {
		return nil, errors.SamplerDivergence(string(platform)+"/"+string(outcome), "no posterior draws to compile")
	}

	alpha := make([]float64, 0, total)
	beta0 := make([]float64, 0, total)
	beta1 := make([]float64, 0, total)
	for _, c := range chains {
		for _, d := range c.Draws {
			alpha = append(alpha, d.Alpha)
			beta0 = append(beta0, d.Beta0)
			beta1 = append(beta1, d.Beta1)
		}
	}

	alphaEst, err := summarize(alpha)
	if err != nil {
		return nil, errors.Wrap(err, "compile alpha posterior")
	}
	beta0Est, err := summarize(beta0)
	if err != nil {
		return nil, errors.Wrap(err, "compile beta0 posterior")
	}
	beta1Est, err := summarize(beta1)
	if err != nil {
		return nil, errors.Wrap(err, "compile beta1 posterior")
	}

	posterior := &model.GammaPosterior{
		Platform:    platform,
		Outcome:     outcome,
		Alpha:       alphaEst,
		Beta0:       beta0Est,
		Beta1:       beta1Est,
		PooledDraws: total,
	}
	if err := posterior.Validate(); err != nil {
		return nil, errors.Wrap(errors.SamplerDivergence(string(platform)+"/"+string(outcome), err.Error()), "compiled posterior invalid")
	}
	return posterior, nil
}

// ChainMedianSpread is a cheap convergence diagnostic: the max-min spread of
// the per-chain alpha medians. Chains that mixed agree on the shape
// parameter, so a large spread flags a partition worth rerunning.
func ChainMedianSpread(chains []ChainResult) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range chains {
		if len(c.Draws) == 0 {
			continue
		}
		alpha := make([]float64, len(c.Draws))
		for i, d := range c.Draws {
			alpha[i] = d.Alpha
		}
		m, err := stats.Median(alpha)
		if err != nil {
			continue
		}
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return hi - lo
}

// summarize reduces pooled draws to a median point estimate with a 95%
// credible interval.
func summarize(draws []float64) (model.ParamEstimate, error) {
	lo, err := stats.Percentile(draws, 2.5)
	if err != nil {
		return model.ParamEstimate{}, err
	}
	median, err := stats.Percentile(draws, 50)
	if err != nil {
		return model.ParamEstimate{}, err
	}
	hi, err := stats.Percentile(draws, 97.5)
	if err != nil {
		return model.ParamEstimate{}, err
	}
	return model.ParamEstimate{Median: median, Lo: lo, Hi: hi}, nil
}
