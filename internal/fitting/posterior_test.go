package fitting

import (
	"math"
	"testing"

	"fundcast/domain/campaign"
	"fundcast/internal/errors"
)

// chainOf wraps a fixed draw sequence so the compiler can be checked against
// hand-computed quantiles.
func chainOf(values []float64) ChainResult {
	draws := make([]Draw, len(values))
	for i, v := range values {
		draws[i] = Draw{Alpha: v, Beta0: v + 10, Beta1: v / 100}
	}
	return ChainResult{Seed: 1, Draws: draws, AcceptanceRate: 0.4}
}

func sequence(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestCompilePosterior_PoolsAcrossChains(t *testing.T) {
	// Two chains covering 1..100 between them. The pooled median must sit in
	// the middle and the interval endpoints near the pooled extremes.
	chains := []ChainResult{
		chainOf(sequence(100)[:50]),
		chainOf(sequence(100)[50:]),
	}

	posterior, err := CompilePosterior(campaign.Kickstarter, campaign.OutcomeMet, chains)
	if err != nil {
		t.Fatalf("CompilePosterior failed: %v", err)
	}
	if posterior.PooledDraws != 100 {
		t.Errorf("expected 100 pooled draws, got %d", posterior.PooledDraws)
	}
	if math.Abs(posterior.Alpha.Median-50.5) > 1 {
		t.Errorf("pooled alpha median %v, want ~50.5", posterior.Alpha.Median)
	}
	if posterior.Alpha.Lo > 4 || posterior.Alpha.Hi < 97 {
		t.Errorf("credible interval too narrow: [%v, %v]", posterior.Alpha.Lo, posterior.Alpha.Hi)
	}
	if math.Abs(posterior.Beta0.Median-60.5) > 1 {
		t.Errorf("beta0 summary must track its own draws, got median %v", posterior.Beta0.Median)
	}
}

func TestCompilePosterior_IsOrderInvariant(t *testing.T) {
	a := chainOf(sequence(60)[:30])
	b := chainOf(sequence(60)[30:])

	forward, err := CompilePosterior(campaign.Indiegogo, campaign.OutcomeUnder, []ChainResult{a, b})
	if err != nil {
		t.Fatalf("CompilePosterior failed: %v", err)
	}
	reversed, err := CompilePosterior(campaign.Indiegogo, campaign.OutcomeUnder, []ChainResult{b, a})
	if err != nil {
		t.Fatalf("CompilePosterior failed: %v", err)
	}
	if *forward != *reversed {
		t.Error("pooled summary must not depend on chain order")
	}
}

func TestCompilePosterior_IsIdempotent(t *testing.T) {
	chains := []ChainResult{chainOf(sequence(80))}

	first, err := CompilePosterior(campaign.Kickstarter, campaign.OutcomeUnder, chains)
	if err != nil {
		t.Fatalf("CompilePosterior failed: %v", err)
	}
	second, err := CompilePosterior(campaign.Kickstarter, campaign.OutcomeUnder, chains)
	if err != nil {
		t.Fatalf("CompilePosterior failed: %v", err)
	}
	if *first != *second {
		t.Error("compiling the same draws twice must give identical summaries")
	}
}

func TestChainMedianSpread(t *testing.T) {
	a := chainOf(sequence(100)[:50]) // alpha medians around 25.5
	b := chainOf(sequence(100)[50:]) // around 75.5

	spread := ChainMedianSpread([]ChainResult{a, b})
	if math.Abs(spread-50) > 1 {
		t.Errorf("expected spread ~50, got %v", spread)
	}
	if got := ChainMedianSpread([]ChainResult{a, a}); got != 0 {
		t.Errorf("identical chains must have zero spread, got %v", got)
	}
	if got := ChainMedianSpread(nil); got != 0 {
		t.Errorf("no chains must give zero spread, got %v", got)
	}
}

func TestCompilePosterior_NoDraws(t *testing.T) {
	_, err := CompilePosterior(campaign.Kickstarter, campaign.OutcomeMet, []ChainResult{{Seed: 1}})
	if !errors.IsSamplerDivergence(err) {
		t.Fatalf("expected SAMPLER_DIVERGENCE for empty chains, got %v", err)
	}
}
