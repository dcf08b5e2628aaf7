package ports

import (
	"context"

	"fundcast/domain/model"
)

// ModelStore persists the compiled FittedModel as a flat table, one row per
// platform. Implementations must round-trip exactly: a loaded model gives
// bit-identical survival outputs to the in-process original.
type ModelStore interface {
	SaveModel(ctx context.Context, m model.FittedModel) error
	LoadModel(ctx context.Context) (model.FittedModel, error)
}

// PosteriorStore persists compiled Gamma posteriors keyed by
// (platform, outcome) so repeated queries never require re-sampling.
type PosteriorStore interface {
	SavePosteriors(ctx context.Context, posteriors []model.GammaPosterior) error
	LoadPosteriors(ctx context.Context) ([]model.GammaPosterior, error)
}
