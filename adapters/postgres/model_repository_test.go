package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
)

// testDB connects to the database named by TEST_DATABASE_URL, skipping when
// no database is available.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.ExecContext(context.Background(), "DROP TABLE IF EXISTS fitted_models, gamma_posteriors")
		db.Close()
	})
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func storedModel() model.FittedModel {
	params := model.PlatformParams{
		C0: 2.9871604401880255, C1: -0.7913226523904716,
		AlphaUnder: 0.5523671186122537, Beta0Under: 4.071216261618973, Beta1Under: 1.1920928955078125e-05,
		AlphaMet: 0.8231563191203781, Beta0Met: 5.002384185791016, Beta1Met: 9.5367431640625e-07,
	}
	other := params
	other.C0 = 1.9973554611206055
	return model.FittedModel{Kickstarter: params, Indiegogo: other}
}

func TestModelRepository_SaveAndLoad(t *testing.T) {
	db := testDB(t)
	repo := NewModelRepository(db)
	ctx := context.Background()

	saved := storedModel()
	require.NoError(t, repo.SaveModel(ctx, saved))

	loaded, err := repo.LoadModel(ctx)
	require.NoError(t, err)
	// DOUBLE PRECISION is IEEE 754 binary64: the round trip is exact.
	assert.Equal(t, saved, loaded)

	// Upserts replace rather than duplicate.
	updated := saved
	updated.Kickstarter.C0 = 3.5
	require.NoError(t, repo.SaveModel(ctx, updated))
	reloaded, err := repo.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded)
}

func TestModelRepository_LoadBeforeSave(t *testing.T) {
	db := testDB(t)
	repo := NewModelRepository(db)
	if _, err := repo.LoadModel(context.Background()); err == nil {
		t.Fatal("expected NOT_FOUND before any model is saved")
	}
}

func TestModelRepository_PosteriorRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewModelRepository(db)
	ctx := context.Background()

	saved := []model.GammaPosterior{
		{
			Platform: campaign.Indiegogo, Outcome: campaign.OutcomeMet,
			Alpha:       model.ParamEstimate{Median: 0.7, Lo: 0.65, Hi: 0.76},
			Beta0:       model.ParamEstimate{Median: 6.0, Lo: 5.6, Hi: 6.5},
			Beta1:       model.ParamEstimate{Median: 1e-6, Lo: -1e-7, Hi: 2e-6},
			PooledDraws: 4500,
		},
		{
			Platform: campaign.Kickstarter, Outcome: campaign.OutcomeUnder,
			Alpha:       model.ParamEstimate{Median: 0.6, Lo: 0.55, Hi: 0.66},
			Beta0:       model.ParamEstimate{Median: 4.0, Lo: 3.7, Hi: 4.4},
			Beta1:       model.ParamEstimate{Median: 1e-5, Lo: 8e-6, Hi: 1.2e-5},
			PooledDraws: 4500,
		},
	}
	require.NoError(t, repo.SavePosteriors(ctx, saved))

	loaded, err := repo.LoadPosteriors(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, saved, loaded)
}
