package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal/errors"
	"fundcast/ports"
)

// ModelRepository persists fitted models and compiled posteriors as flat
// tables, one row per platform / per (platform, outcome, parameter). It
// implements both ports.ModelStore and ports.PosteriorStore.
type ModelRepository struct {
	db *sqlx.DB
}

var (
	_ ports.ModelStore     = (*ModelRepository)(nil)
	_ ports.PosteriorStore = (*ModelRepository)(nil)
)

// NewModelRepository creates a postgres-backed model store.
func NewModelRepository(db *sqlx.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// EnsureSchema creates the persistence tables when absent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS fitted_models (
			platform    TEXT PRIMARY KEY,
			c0          DOUBLE PRECISION NOT NULL,
			c1          DOUBLE PRECISION NOT NULL,
			alpha_under DOUBLE PRECISION NOT NULL,
			alpha_met   DOUBLE PRECISION NOT NULL,
			beta0_under DOUBLE PRECISION NOT NULL,
			beta0_met   DOUBLE PRECISION NOT NULL,
			beta1_under DOUBLE PRECISION NOT NULL,
			beta1_met   DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gamma_posteriors (
			platform     TEXT NOT NULL,
			outcome      TEXT NOT NULL,
			parameter    TEXT NOT NULL,
			q2_5         DOUBLE PRECISION NOT NULL,
			median       DOUBLE PRECISION NOT NULL,
			q97_5        DOUBLE PRECISION NOT NULL,
			pooled_draws INTEGER NOT NULL,
			PRIMARY KEY (platform, outcome, parameter)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "creating persistence schema")
		}
	}
	return nil
}

// SaveModel upserts one row per platform. The write is transactional so a
// reader never observes a half-published model.
func (r *ModelRepository) SaveModel(ctx context.Context, m model.FittedModel) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "refusing to persist invalid model")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin model save")
	}
	defer tx.Rollback()

	query := `INSERT INTO fitted_models (
		platform, c0, c1, alpha_under, alpha_met, beta0_under, beta0_met, beta1_under, beta1_met
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (platform) DO UPDATE SET
		c0 = EXCLUDED.c0, c1 = EXCLUDED.c1,
		alpha_under = EXCLUDED.alpha_under, alpha_met = EXCLUDED.alpha_met,
		beta0_under = EXCLUDED.beta0_under, beta0_met = EXCLUDED.beta0_met,
		beta1_under = EXCLUDED.beta1_under, beta1_met = EXCLUDED.beta1_met`

	for _, platform := range campaign.Platforms() {
		params, err := m.ParamsFor(platform)
		if err != nil {
			return errors.Wrap(err, "resolving platform parameters")
		}
		if _, err := tx.ExecContext(ctx, query,
			platform.String(), params.C0, params.C1,
			params.AlphaUnder, params.AlphaMet,
			params.Beta0Under, params.Beta0Met,
			params.Beta1Under, params.Beta1Met,
		); err != nil {
			return errors.Wrap(err, "saving fitted model row")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit model save")
	}
	return nil
}

// LoadModel reads the flat table back into a validated FittedModel.
func (r *ModelRepository) LoadModel(ctx context.Context) (model.FittedModel, error) {
	query := `SELECT c0, c1, alpha_under, alpha_met, beta0_under, beta0_met, beta1_under, beta1_met
		FROM fitted_models WHERE platform = $1`

	var m model.FittedModel
	for _, platform := range campaign.Platforms() {
		var params model.PlatformParams
		err := r.db.GetContext(ctx, &params, query, platform.String())
		if err != nil {
			if err == sql.ErrNoRows {
				return model.FittedModel{}, errors.NotFound("fitted model for " + platform.String())
			}
			return model.FittedModel{}, errors.Wrap(err, "loading fitted model")
		}
		switch platform {
		case campaign.Kickstarter:
			m.Kickstarter = params
		case campaign.Indiegogo:
			m.Indiegogo = params
		}
	}

	if err := m.Validate(); err != nil {
		return model.FittedModel{}, errors.Wrap(err, "persisted model failed validation")
	}
	return m, nil
}

// SavePosteriors upserts one row per (platform, outcome, parameter).
func (r *ModelRepository) SavePosteriors(ctx context.Context, posteriors []model.GammaPosterior) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin posterior save")
	}
	defer tx.Rollback()

	query := `INSERT INTO gamma_posteriors (
		platform, outcome, parameter, q2_5, median, q97_5, pooled_draws
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (platform, outcome, parameter) DO UPDATE SET
		q2_5 = EXCLUDED.q2_5, median = EXCLUDED.median, q97_5 = EXCLUDED.q97_5,
		pooled_draws = EXCLUDED.pooled_draws`

	for _, p := range posteriors {
		rows := map[string]model.ParamEstimate{
			"alpha": p.Alpha,
			"beta0": p.Beta0,
			"beta1": p.Beta1,
		}
		for name, est := range rows {
			if _, err := tx.ExecContext(ctx, query,
				p.Platform.String(), p.Outcome.String(), name,
				est.Lo, est.Median, est.Hi, p.PooledDraws,
			); err != nil {
				return errors.Wrap(err, "saving posterior row")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit posterior save")
	}
	return nil
}

// LoadPosteriors reads every persisted posterior summary.
func (r *ModelRepository) LoadPosteriors(ctx context.Context) ([]model.GammaPosterior, error) {
	query := `SELECT platform, outcome, parameter, q2_5, median, q97_5, pooled_draws
		FROM gamma_posteriors ORDER BY platform, outcome, parameter`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "loading posteriors")
	}
	defer rows.Close()

	byKey := make(map[string]*model.GammaPosterior)
	var order []string
	for rows.Next() {
		var platformTag, outcomeTag, parameter string
		var lo, median, hi float64
		var pooled int
		if err := rows.Scan(&platformTag, &outcomeTag, &parameter, &lo, &median, &hi, &pooled); err != nil {
			return nil, errors.Wrap(err, "scanning posterior row")
		}
		platform, err := campaign.ParsePlatform(platformTag)
		if err != nil {
			return nil, errors.Wrap(err, "posterior row")
		}
		outcome, err := campaign.ParseOutcome(outcomeTag)
		if err != nil {
			return nil, errors.Wrap(err, "posterior row")
		}

		key := platformTag + "/" + outcomeTag
		p, ok := byKey[key]
		if !ok {
			p = &model.GammaPosterior{Platform: platform, Outcome: outcome}
			byKey[key] = p
			order = append(order, key)
		}
		est := model.ParamEstimate{Lo: lo, Median: median, Hi: hi}
		switch parameter {
		case "alpha":
			p.Alpha = est
		case "beta0":
			p.Beta0 = est
		case "beta1":
			p.Beta1 = est
		default:
			return nil, errors.InvalidInput("unknown posterior parameter " + parameter)
		}
		p.PooledDraws = pooled
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating posterior rows")
	}

	posteriors := make([]model.GammaPosterior, 0, len(order))
	for _, key := range order {
		posteriors = append(posteriors, *byKey[key])
	}
	return posteriors, nil
}
