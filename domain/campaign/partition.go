package campaign

import (
	"fmt"
	"math/rand"
)

// Boundary nudges keeping the Gamma likelihood supported on (0, inf).
// Met-goal fractions are recentered to excess over goal; under-goal
// fractions get a small epsilon so exact zeros have nonzero density.
// These constants are a known approximation carried over for output
// compatibility, not a principled boundary-corrected model.
const (
	MetGoalOffset    = 0.9999
	UnderGoalEpsilon = 0.0001
)

// Partition is one homogeneous (platform, outcome) subset of a dataset,
// prepared for Gamma-rate sampling. RaisedFrac values are already shifted
// onto positive support.
type Partition struct {
	Platform   Platform
	Outcome    Outcome
	RaisedFrac []float64
	Goals      []float64

	// Provenance for reproducibility.
	SourceSize    int   // records in the partition before any subsampling
	SampleSize    int   // records actually handed to the sampler
	Subsampled    bool
	SubsampleSeed int64
}

// Key returns a stable identifier for logging and persistence.
func (p *Partition) Key() string {
	return fmt.Sprintf("%s/%s", p.Platform, p.Outcome)
}

// PartitionConfig controls how a dataset is split for sampling.
type PartitionConfig struct {
	// SubsampleCap bounds sampler runtime on very large partitions.
	// Zero or negative means uncapped.
	SubsampleCap int
	// Seed drives the uniform-random subsample so a fit is reproducible.
	Seed int64
}

// DefaultPartitionConfig returns the reference settings: Kickstarter-scale
// partitions capped at 25,000 records.
func DefaultPartitionConfig() PartitionConfig {
	return PartitionConfig{
		SubsampleCap: 25000,
		Seed:         42,
	}
}

// PartitionDataset splits records into the four (platform, outcome) subsets,
// applies the support offsets, and uniformly subsamples any partition larger
// than the configured cap. The subsample seed and effective size are recorded
// on each partition.
func PartitionDataset(d Dataset, cfg PartitionConfig) ([]*Partition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	byKey := make(map[string]*Partition, 4)
	var parts []*Partition
	for _, platform := range Platforms() {
		for _, outcome := range Outcomes() {
			p := &Partition{Platform: platform, Outcome: outcome}
			byKey[p.Key()] = p
			parts = append(parts, p)
		}
	}

	for _, r := range d {
		p := byKey[fmt.Sprintf("%s/%s", r.Platform, r.Outcome())]
		p.RaisedFrac = append(p.RaisedFrac, shiftToSupport(r.RaisedFrac, r.Outcome()))
		p.Goals = append(p.Goals, r.GoalUSD)
	}

	for _, p := range parts {
		p.SourceSize = len(p.RaisedFrac)
		p.SampleSize = p.SourceSize
		if cfg.SubsampleCap > 0 && p.SourceSize > cfg.SubsampleCap {
			subsample(p, cfg.SubsampleCap, cfg.Seed)
		}
	}

	return parts, nil
}

// shiftToSupport maps a raw raised fraction onto strictly positive support
// for its outcome class.
func shiftToSupport(frac float64, outcome Outcome) float64 {
	if outcome == OutcomeMet {
		return frac - MetGoalOffset
	}
	return frac + UnderGoalEpsilon
}

// subsample keeps a uniform-random subset of size cap, drawn without
// replacement under a deterministic seed.
func subsample(p *Partition, cap int, seed int64) {
	idx := make([]int, p.SourceSize)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})

	frac := make([]float64, cap)
	goals := make([]float64, cap)
	for i := 0; i < cap; i++ {
		frac[i] = p.RaisedFrac[idx[i]]
		goals[i] = p.Goals[idx[i]]
	}

	p.RaisedFrac = frac
	p.Goals = goals
	p.SampleSize = cap
	p.Subsampled = true
	p.SubsampleSeed = seed
}
