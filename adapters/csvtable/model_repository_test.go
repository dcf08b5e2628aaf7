package csvtable

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal/errors"
	"fundcast/internal/predict"
)

// awkwardFloats deliberately uses values with no short decimal expansion so
// the round-trip test exercises the shortest-representation formatting.
func awkwardModel() model.FittedModel {
	return model.FittedModel{
		Kickstarter: model.PlatformParams{
			C0: 2.9871604401880255, C1: -0.7913226523904716,
			AlphaUnder: 0.5523671186122537, Beta0Under: 4.071216261618973, Beta1Under: 1.1920928955078125e-05,
			AlphaMet: 0.8231563191203781, Beta0Met: 5.002384185791016, Beta1Met: 9.5367431640625e-07,
		},
		Indiegogo: model.PlatformParams{
			C0: 1.9973554611206055, C1: -0.7000000000001023,
			AlphaUnder: 0.4999999999999998, Beta0Under: 3.0000000000000004, Beta1Under: 1.0000000000000002e-05,
			AlphaMet: 0.7071067811865476, Beta0Met: 6.123233995736766, Beta1Met: 1e-06,
		},
	}
}

func newTestRepository(t *testing.T) *ModelRepository {
	t.Helper()
	dir := t.TempDir()
	return NewModelRepository(
		filepath.Join(dir, "fitted_model.csv"),
		filepath.Join(dir, "fitted_model.posteriors.csv"),
	)
}

func TestModelRepository_RoundTripIsBitExact(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	saved := awkwardModel()

	require.NoError(t, repo.SaveModel(ctx, saved))
	loaded, err := repo.LoadModel(ctx)
	require.NoError(t, err)

	// Struct equality compares every float bit for bit.
	assert.Equal(t, saved, loaded)

	// The guarantee that matters downstream: identical query results.
	probes := []struct{ target, goal float64 }{
		{781, 500}, {2500, 10000}, {10000, 10000}, {123456.78, 100000},
	}
	for _, platform := range campaign.Platforms() {
		for _, probe := range probes {
			before, err := predict.Survival(probe.target, probe.goal, platform, saved)
			require.NoError(t, err)
			after, err := predict.Survival(probe.target, probe.goal, platform, loaded)
			require.NoError(t, err)
			if math.Float64bits(before) != math.Float64bits(after) {
				t.Errorf("%s survival(%v, %v) drifted after reload: %v vs %v",
					platform, probe.target, probe.goal, before, after)
			}
		}
	}
}

func TestModelRepository_RefusesInvalidModel(t *testing.T) {
	repo := newTestRepository(t)
	broken := awkwardModel()
	broken.Kickstarter.AlphaMet = -1

	if err := repo.SaveModel(context.Background(), broken); err == nil {
		t.Fatal("invalid model must not reach disk")
	}
}

func TestModelRepository_LoadMissingFile(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.LoadModel(context.Background())
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for missing table, got %v", err)
	}
}

func TestModelRepository_PosteriorRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	saved := []model.GammaPosterior{
		{
			Platform: campaign.Kickstarter, Outcome: campaign.OutcomeMet,
			Alpha:       model.ParamEstimate{Median: 0.8231563191203781, Lo: 0.79, Hi: 0.86},
			Beta0:       model.ParamEstimate{Median: 5.002384185791016, Lo: 4.7, Hi: 5.3},
			Beta1:       model.ParamEstimate{Median: 9.5367431640625e-07, Lo: -1e-7, Hi: 2e-6},
			PooledDraws: 4500,
		},
		{
			Platform: campaign.Indiegogo, Outcome: campaign.OutcomeUnder,
			Alpha:       model.ParamEstimate{Median: 0.4999999999999998, Lo: 0.46, Hi: 0.54},
			Beta0:       model.ParamEstimate{Median: 3.0000000000000004, Lo: 2.8, Hi: 3.2},
			Beta1:       model.ParamEstimate{Median: 1.0000000000000002e-05, Lo: 8e-6, Hi: 1.2e-5},
			PooledDraws: 4500,
		},
	}
	require.NoError(t, repo.SavePosteriors(ctx, saved))

	loaded, err := repo.LoadPosteriors(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestModelRepository_PosteriorPathRequired(t *testing.T) {
	repo := NewModelRepository(filepath.Join(t.TempDir(), "fitted_model.csv"), "")
	if err := repo.SavePosteriors(context.Background(), nil); err == nil {
		t.Fatal("expected missing posterior path to be rejected")
	}
	if _, err := repo.LoadPosteriors(context.Background()); err == nil {
		t.Fatal("expected missing posterior path to be rejected")
	}
}
