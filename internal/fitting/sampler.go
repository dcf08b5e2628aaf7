package fitting

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"fundcast/domain/campaign"
	"fundcast/internal/errors"
)

// Weakly-informative priors over the Gamma rate model parameters.
// beta0's Normal prior is truncated to positive support by rejection.
var (
	alphaPrior = distuv.Gamma{Alpha: 2, Beta: 1}
	beta0Prior = distuv.Normal{Mu: 10, Sigma: 10}
	beta1Prior = distuv.Normal{Mu: 0, Sigma: 10}
)

// Draw is one posterior sample of the Gamma rate model
//
//	raised_frac ~ Gamma(alpha, beta0 + beta1*goal)
type Draw struct {
	Alpha float64
	Beta0 float64
	Beta1 float64
}

// ChainResult is the ordered output of one independent MCMC chain.
type ChainResult struct {
	Seed           int64
	Draws          []Draw // warm-up already discarded
	AcceptanceRate float64
}

// SamplerSettings controls the Metropolis-within-Gibbs run.
type SamplerSettings struct {
	Chains     int
	Iterations int // per chain, including warm-up
	WarmUp     int // leading iterations discarded before pooling

	// Random-walk proposal scales. StepBeta1 of zero selects a scale
	// appropriate to the partition's goal magnitudes.
	StepAlpha float64
	StepBeta0 float64
	StepBeta1 float64
}

// DefaultSamplerSettings returns the reference configuration: 3 independent
// chains of 2000 iterations, the first 500 discarded as warm-up.
func DefaultSamplerSettings() SamplerSettings {
	return SamplerSettings{
		Chains:     3,
		Iterations: 2000,
		WarmUp:     500,
		StepAlpha:  0.15,
		StepBeta0:  0.5,
	}
}

// SampleGammaRate draws posterior samples of (alpha, beta0, beta1) for one
// homogeneous partition. Chains are mathematically independent: each owns
// its seeded RNG and likelihood state, and they run in parallel. One seed
// per chain is required.
//
// Fails with SAMPLER_DIVERGENCE when the partition is degenerate or a chain
// cannot find a finite starting density.
func SampleGammaRate(ctx context.Context, p *campaign.Partition, cfg SamplerSettings, seeds []int64) ([]ChainResult, error) {
	if len(p.RaisedFrac) < 5 {
		return nil, errors.SamplerDivergence(p.Key(), "too few records for posterior sampling")
	}
	if len(seeds) != cfg.Chains {
		return nil, errors.InvalidInput("one seed per chain is required")
	}
	for i, y := range p.RaisedFrac {
		if y <= 0 || math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, errors.SamplerDivergence(p.Key(), "observation outside Gamma support after boundary shift")
		}
		g := p.Goals[i]
		if g <= 0 || math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, errors.SamplerDivergence(p.Key(), "non-positive goal in partition")
		}
	}

	if cfg.StepBeta1 == 0 {
		cfg.StepBeta1 = beta1Scale(p.Goals)
	}

	type indexed struct {
		idx    int
		result ChainResult
		err    error
	}
	results := make([]ChainResult, cfg.Chains)
	ch := make(chan indexed, cfg.Chains)
	for c := 0; c < cfg.Chains; c++ {
		go func(c int) {
			res, err := runChain(ctx, p, cfg, seeds[c])
			ch <- indexed{idx: c, result: res, err: err}
		}(c)
	}
	var firstErr error
	for i := 0; i < cfg.Chains; i++ {
		out := <-ch
		if out.err != nil && firstErr == nil {
			firstErr = out.err
		}
		results[out.idx] = out.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// beta1Scale picks a proposal step so that beta1 moves perturb the rate by
// roughly the same magnitude as beta0 moves at a typical goal.
func beta1Scale(goals []float64) float64 {
	max := 0.0
	for _, g := range goals {
		if g > max {
			max = g
		}
	}
	if max == 0 {
		return 1e-6
	}
	return 0.5 / max
}

// chainState caches the expensive likelihood terms. sumLogRate only depends
// on (beta0, beta1), so alpha updates reuse it.
type chainState struct {
	y, goals []float64
	n        float64
	sumLogY  float64
	sumY     float64
	sumGoalY float64

	alpha, beta0, beta1 float64
	sumLogRate          float64
	logPost             float64
}

// sumLogRateAt computes sum_i log(beta0 + beta1*goal_i), or -Inf when any
// rate leaves positive support.
func (s *chainState) sumLogRateAt(beta0, beta1 float64) float64 {
	total := 0.0
	for _, g := range s.goals {
		r := beta0 + beta1*g
		if r <= 0 {
			return math.Inf(-1)
		}
		total += math.Log(r)
	}
	return total
}

// logPosterior evaluates the unnormalized posterior density given a
// precomputed sumLogRate for (beta0, beta1).
func (s *chainState) logPosterior(alpha, beta0, beta1, sumLogRate float64) float64 {
	if alpha <= 0 || beta0 <= 0 || math.IsInf(sumLogRate, -1) {
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(alpha)
	ll := alpha*sumLogRate + (alpha-1)*s.sumLogY - (beta0*s.sumY + beta1*s.sumGoalY) - s.n*lg
	lp := ll + alphaPrior.LogProb(alpha) + beta0Prior.LogProb(beta0) + beta1Prior.LogProb(beta1)
	return lp
}

// runChain executes one Metropolis-within-Gibbs chain: per iteration each
// parameter takes a Gaussian random-walk proposal accepted by the
// Metropolis rule.
func runChain(ctx context.Context, p *campaign.Partition, cfg SamplerSettings, seed int64) (ChainResult, error) {
	rng := rand.New(rand.NewSource(seed))

	s := &chainState{
		y:     p.RaisedFrac,
		goals: p.Goals,
		n:     float64(len(p.RaisedFrac)),
	}
	for i, y := range s.y {
		s.sumLogY += math.Log(y)
		s.sumY += y
		s.sumGoalY += s.goals[i] * y
	}

	if err := initChain(s, rng); err != nil {
		return ChainResult{}, errors.SamplerDivergence(p.Key(), err.Error())
	}

	kept := cfg.Iterations - cfg.WarmUp
	draws := make([]Draw, 0, kept)
	accepted := 0
	proposals := 0

	for iter := 0; iter < cfg.Iterations; iter++ {
		if iter%64 == 0 {
			select {
			case <-ctx.Done():
				return ChainResult{}, ctx.Err()
			default:
			}
		}

		// alpha move: sumLogRate is unchanged.
		proposals++
		a := s.alpha + rng.NormFloat64()*cfg.StepAlpha
		if next := s.logPosterior(a, s.beta0, s.beta1, s.sumLogRate); accept(rng, s.logPost, next) {
			s.alpha, s.logPost = a, next
			accepted++
		}

		// beta0 move.
		proposals++
		if b0 := s.beta0 + rng.NormFloat64()*cfg.StepBeta0; b0 > 0 {
			slr := s.sumLogRateAt(b0, s.beta1)
			if next := s.logPosterior(s.alpha, b0, s.beta1, slr); accept(rng, s.logPost, next) {
				s.beta0, s.sumLogRate, s.logPost = b0, slr, next
				accepted++
			}
		}

		// beta1 move.
		proposals++
		b1 := s.beta1 + rng.NormFloat64()*cfg.StepBeta1
		if slr := s.sumLogRateAt(s.beta0, b1); !math.IsInf(slr, -1) {
			if next := s.logPosterior(s.alpha, s.beta0, b1, slr); accept(rng, s.logPost, next) {
				s.beta1, s.sumLogRate, s.logPost = b1, slr, next
				accepted++
			}
		}

		if iter >= cfg.WarmUp {
			draws = append(draws, Draw{Alpha: s.alpha, Beta0: s.beta0, Beta1: s.beta1})
		}
	}

	return ChainResult{
		Seed:           seed,
		Draws:          draws,
		AcceptanceRate: float64(accepted) / float64(proposals),
	}, nil
}

// initChain starts a chain from moment-matched estimates with per-chain
// jitter so independent chains begin at distinct points.
func initChain(s *chainState, rng *rand.Rand) error {
	mean := s.sumY / s.n
	variance := 0.0
	for _, y := range s.y {
		d := y - mean
		variance += d * d
	}
	variance /= s.n - 1
	if variance <= 0 || mean <= 0 {
		return errInit("degenerate data: zero variance or non-positive mean")
	}

	// Method-of-moments for a Gamma: alpha = m^2/v, rate = m/v.
	alpha0 := mean * mean / variance
	beta00 := mean / variance

	for attempt := 0; attempt < 20; attempt++ {
		jitter := 1 + 0.2*rng.Float64()
		s.alpha = alpha0 * jitter
		s.beta0 = beta00 * jitter
		s.beta1 = 0
		s.sumLogRate = s.sumLogRateAt(s.beta0, s.beta1)
		s.logPost = s.logPosterior(s.alpha, s.beta0, s.beta1, s.sumLogRate)
		if !math.IsInf(s.logPost, -1) && !math.IsNaN(s.logPost) {
			return nil
		}
	}
	return errInit("no finite starting density found")
}

type errInit string

func (e errInit) Error() string { return string(e) }

// accept applies the Metropolis rule in log space.
func accept(rng *rand.Rand, current, proposed float64) bool {
	if math.IsInf(proposed, -1) || math.IsNaN(proposed) {
		return false
	}
	if proposed >= current {
		return true
	}
	return math.Log(rng.Float64()) < proposed-current
}
