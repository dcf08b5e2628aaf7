package run

import (
	"fundcast/domain/core"
)

// ChainTrace records the provenance of one MCMC chain.
type ChainTrace struct {
	Seed           int64   `json:"seed"`
	Iterations     int     `json:"iterations"`
	Kept           int     `json:"kept"` // draws retained after warm-up
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// PartitionTrace records how one (platform, outcome) partition was sampled.
// AlphaMedianSpread is the max-min spread of the per-chain alpha medians, a
// cheap convergence signal: well-mixed chains agree on the shape parameter.
type PartitionTrace struct {
	Key               string       `json:"key"`
	SourceSize        int          `json:"source_size"`
	SampleSize        int          `json:"sample_size"`
	Subsampled        bool         `json:"subsampled"`
	SubsampleSeed     int64        `json:"subsample_seed,omitempty"`
	Chains            []ChainTrace `json:"chains"`
	AlphaMedianSpread float64      `json:"alpha_median_spread"`
}

// Manifest is the audit record published alongside every fitted model.
// It carries everything needed to reproduce the fit: seeds, subsample
// sizes, and sampler settings.
type Manifest struct {
	RunID      core.RunID       `json:"run_id"`
	BaseSeed   int64            `json:"base_seed"`
	Records    int              `json:"records"`
	Partitions []PartitionTrace `json:"partitions"`
	CreatedAt  core.Timestamp   `json:"created_at"`
	RuntimeMs  int64            `json:"runtime_ms"`
}
