package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"fundcast/domain/campaign"
	"fundcast/domain/core"
	"fundcast/domain/model"
	"fundcast/domain/run"
	"fundcast/internal"
	"fundcast/internal/errors"
	"fundcast/internal/fitting"
	"fundcast/ports"
)

// FitService orchestrates a full model-fitting run: the logistic
// goal-attainment fit plus four concurrent per-partition Gamma posterior
// fits, compiled and validated into one immutable FittedModel.
type FitService struct {
	logger       *internal.Logger
	rng          ports.RNGPort
	sampler      fitting.SamplerSettings
	partitionCfg campaign.PartitionConfig
	concurrency  int64
}

// FitRequest defines the inputs for one fitting run.
type FitRequest struct {
	Dataset  campaign.Dataset
	BaseSeed int64
}

// FitResult is the complete output of a fitting run. Model is only set when
// every component fit succeeded and validated.
type FitResult struct {
	Model      model.FittedModel      `json:"model"`
	Logistic   model.LogisticFit      `json:"logistic"`
	Posteriors []model.GammaPosterior `json:"posteriors"`
	Manifest   run.Manifest           `json:"manifest"`
}

// NewFitService creates a fit service with the given sampler settings.
func NewFitService(logger *internal.Logger, rngPort ports.RNGPort, sampler fitting.SamplerSettings, partitionCfg campaign.PartitionConfig) *FitService {
	return &FitService{
		logger:       logger,
		rng:          rngPort,
		sampler:      sampler,
		partitionCfg: partitionCfg,
		concurrency:  4, // the four partitions are independent
	}
}

// Fit runs the complete two-stage fit. Any component failure aborts the run:
// a partial model missing a partition's parameters is never published.
func (s *FitService) Fit(ctx context.Context, req FitRequest) (*FitResult, error) {
	started := time.Now()
	runID := core.NewRunID()
	s.logger.Info("fit %s: %d records, %d chains x %d iterations",
		runID, len(req.Dataset), s.sampler.Chains, s.sampler.Iterations)

	logistic, err := fitting.FitLogistic(req.Dataset)
	if err != nil {
		return nil, err
	}

	partitionCfg := s.partitionCfg
	partitionCfg.Seed = s.rng.StreamSeed("subsample", req.BaseSeed)
	partitions, err := campaign.PartitionDataset(req.Dataset, partitionCfg)
	if err != nil {
		return nil, errors.Wrap(err, "partitioning dataset")
	}

	sem := semaphore.NewWeighted(s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	fits := make([]partitionFit, len(partitions))
	var firstErr error

	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p *campaign.Partition) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			fit, err := s.fitPartition(ctx, p, req.BaseSeed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			fits[i] = *fit
		}(i, p)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	posteriors := make([]model.GammaPosterior, 0, len(fits))
	byKey := make(map[string]*model.GammaPosterior, len(fits))
	traces := make([]run.PartitionTrace, 0, len(fits))
	for i := range fits {
		posteriors = append(posteriors, *fits[i].posterior)
		byKey[fits[i].trace.Key] = fits[i].posterior
		traces = append(traces, fits[i].trace)
	}

	fitted, err := assembleModel(*logistic, byKey)
	if err != nil {
		return nil, err
	}

	result := &FitResult{
		Model:      *fitted,
		Logistic:   *logistic,
		Posteriors: posteriors,
		Manifest: run.Manifest{
			RunID:      runID,
			BaseSeed:   req.BaseSeed,
			Records:    len(req.Dataset),
			Partitions: traces,
			CreatedAt:  core.Now(),
			RuntimeMs:  time.Since(started).Milliseconds(),
		},
	}
	s.logger.Info("fit %s: complete in %dms", runID, result.Manifest.RuntimeMs)
	return result, nil
}

// partitionFit pairs one partition's compiled posterior with its audit trace.
type partitionFit struct {
	posterior *model.GammaPosterior
	trace     run.PartitionTrace
}

// fitPartition samples and compiles one (platform, outcome) posterior.
func (s *FitService) fitPartition(ctx context.Context, p *campaign.Partition, baseSeed int64) (*partitionFit, error) {
	seeds := make([]int64, s.sampler.Chains)
	for c := range seeds {
		seeds[c] = s.rng.StreamSeed(fmt.Sprintf("chain/%s/%d", p.Key(), c), baseSeed)
	}

	chains, err := fitting.SampleGammaRate(ctx, p, s.sampler, seeds)
	if err != nil {
		s.logger.Error("partition %s: %v", p.Key(), err)
		return nil, err
	}

	posterior, err := fitting.CompilePosterior(p.Platform, p.Outcome, chains)
	if err != nil {
		return nil, err
	}

	trace := run.PartitionTrace{
		Key:               p.Key(),
		SourceSize:        p.SourceSize,
		SampleSize:        p.SampleSize,
		Subsampled:        p.Subsampled,
		SubsampleSeed:     p.SubsampleSeed,
		AlphaMedianSpread: fitting.ChainMedianSpread(chains),
	}
	for _, c := range chains {
		trace.Chains = append(trace.Chains, run.ChainTrace{
			Seed:           c.Seed,
			Iterations:     s.sampler.Iterations,
			Kept:           len(c.Draws),
			AcceptanceRate: c.AcceptanceRate,
		})
		s.logger.Debug("partition %s: chain seed=%d acceptance=%.2f", p.Key(), c.Seed, c.AcceptanceRate)
	}

	return &partitionFit{posterior: posterior, trace: trace}, nil
}

// assembleModel combines the logistic coefficients and the four compiled
// posteriors into a validated FittedModel.
func assembleModel(logistic model.LogisticFit, posteriors map[string]*model.GammaPosterior) (*model.FittedModel, error) {
	var fitted model.FittedModel
	for _, platform := range campaign.Platforms() {
		c0, c1 := logistic.PlatformCoefficients(platform)
		params := model.PlatformParams{C0: c0, C1: c1}
		for _, outcome := range campaign.Outcomes() {
			posterior, ok := posteriors[fmt.Sprintf("%s/%s", platform, outcome)]
			if !ok {
				return nil, errors.InternalError(fmt.Sprintf("missing posterior for %s/%s", platform, outcome))
			}
			if outcome == campaign.OutcomeMet {
				params.AlphaMet = posterior.Alpha.Median
				params.Beta0Met = posterior.Beta0.Median
				params.Beta1Met = posterior.Beta1.Median
			} else {
				params.AlphaUnder = posterior.Alpha.Median
				params.Beta0Under = posterior.Beta0.Median
				params.Beta1Under = posterior.Beta1.Median
			}
		}
		switch platform {
		case campaign.Kickstarter:
			fitted.Kickstarter = params
		case campaign.Indiegogo:
			fitted.Indiegogo = params
		}
	}
	if err := fitted.Validate(); err != nil {
		return nil, errors.Wrap(err, "fitted model failed validation")
	}
	return &fitted, nil
}
