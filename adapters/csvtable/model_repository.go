// Package csvtable persists the fitted-model interchange tables as CSV
// files, for fitting pipelines that run without a database. Floats are
// written with strconv's shortest round-trip formatting so a loaded model
// gives bit-identical query results to the original.
package csvtable

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal/errors"
	"fundcast/ports"
)

var modelHeader = []string{
	"platform", "c0", "c1",
	"alpha_under", "alpha_met",
	"beta0_under", "beta0_met",
	"beta1_under", "beta1_met",
}

var posteriorHeader = []string{
	"platform", "outcome", "parameter", "q2_5", "median", "q97_5", "pooled_draws",
}

// ModelRepository stores the model table and the posterior table as two
// CSV files.
type ModelRepository struct {
	modelPath     string
	posteriorPath string
}

var (
	_ ports.ModelStore     = (*ModelRepository)(nil)
	_ ports.PosteriorStore = (*ModelRepository)(nil)
)

// NewModelRepository creates a CSV-backed model store. posteriorPath may be
// empty when only the model table is needed.
func NewModelRepository(modelPath, posteriorPath string) *ModelRepository {
	return &ModelRepository{modelPath: modelPath, posteriorPath: posteriorPath}
}

// SaveModel writes the flat model table, one row per platform.
func (r *ModelRepository) SaveModel(ctx context.Context, m model.FittedModel) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "refusing to persist invalid model")
	}

	rows := [][]string{modelHeader}
	for _, platform := range campaign.Platforms() {
		params, err := m.ParamsFor(platform)
		if err != nil {
			return errors.Wrap(err, "resolving platform parameters")
		}
		rows = append(rows, []string{
			platform.String(),
			formatFloat(params.C0), formatFloat(params.C1),
			formatFloat(params.AlphaUnder), formatFloat(params.AlphaMet),
			formatFloat(params.Beta0Under), formatFloat(params.Beta0Met),
			formatFloat(params.Beta1Under), formatFloat(params.Beta1Met),
		})
	}
	return writeCSV(r.modelPath, rows)
}

// LoadModel reads the flat model table back into a validated FittedModel.
func (r *ModelRepository) LoadModel(ctx context.Context) (model.FittedModel, error) {
	rows, err := readCSV(r.modelPath, modelHeader)
	if err != nil {
		return model.FittedModel{}, err
	}

	var m model.FittedModel
	seen := make(map[campaign.Platform]bool, 2)
	for _, row := range rows {
		platform, err := campaign.ParsePlatform(row[0])
		if err != nil {
			return model.FittedModel{}, errors.Wrap(err, "model table row")
		}
		values, err := parseFloats(row[1:])
		if err != nil {
			return model.FittedModel{}, errors.Wrap(err, "model table row for "+row[0])
		}
		params := model.PlatformParams{
			C0: values[0], C1: values[1],
			AlphaUnder: values[2], AlphaMet: values[3],
			Beta0Under: values[4], Beta0Met: values[5],
			Beta1Under: values[6], Beta1Met: values[7],
		}
		switch platform {
		case campaign.Kickstarter:
			m.Kickstarter = params
		case campaign.Indiegogo:
			m.Indiegogo = params
		}
		seen[platform] = true
	}
	for _, platform := range campaign.Platforms() {
		if !seen[platform] {
			return model.FittedModel{}, errors.NotFound("fitted model for " + platform.String())
		}
	}

	if err := m.Validate(); err != nil {
		return model.FittedModel{}, errors.Wrap(err, "persisted model failed validation")
	}
	return m, nil
}

// SavePosteriors writes the posterior table, one row per
// (platform, outcome, parameter).
func (r *ModelRepository) SavePosteriors(ctx context.Context, posteriors []model.GammaPosterior) error {
	if r.posteriorPath == "" {
		return errors.ConfigInvalid("no posterior table path configured")
	}

	rows := [][]string{posteriorHeader}
	for _, p := range posteriors {
		for _, entry := range []struct {
			name string
			est  model.ParamEstimate
		}{
			{"alpha", p.Alpha},
			{"beta0", p.Beta0},
			{"beta1", p.Beta1},
		} {
			rows = append(rows, []string{
				p.Platform.String(), p.Outcome.String(), entry.name,
				formatFloat(entry.est.Lo), formatFloat(entry.est.Median), formatFloat(entry.est.Hi),
				strconv.Itoa(p.PooledDraws),
			})
		}
	}
	return writeCSV(r.posteriorPath, rows)
}

// LoadPosteriors reads the posterior table.
func (r *ModelRepository) LoadPosteriors(ctx context.Context) ([]model.GammaPosterior, error) {
	if r.posteriorPath == "" {
		return nil, errors.ConfigInvalid("no posterior table path configured")
	}
	rows, err := readCSV(r.posteriorPath, posteriorHeader)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*model.GammaPosterior)
	var order []string
	for _, row := range rows {
		platform, err := campaign.ParsePlatform(row[0])
		if err != nil {
			return nil, errors.Wrap(err, "posterior table row")
		}
		outcome, err := campaign.ParseOutcome(row[1])
		if err != nil {
			return nil, errors.Wrap(err, "posterior table row")
		}
		values, err := parseFloats(row[3:6])
		if err != nil {
			return nil, errors.Wrap(err, "posterior table row")
		}
		pooled, err := strconv.Atoi(row[6])
		if err != nil {
			return nil, errors.Wrap(err, "posterior table row")
		}

		key := row[0] + "/" + row[1]
		p, ok := byKey[key]
		if !ok {
			p = &model.GammaPosterior{Platform: platform, Outcome: outcome}
			byKey[key] = p
			order = append(order, key)
		}
		est := model.ParamEstimate{Lo: values[0], Median: values[1], Hi: values[2]}
		switch row[2] {
		case "alpha":
			p.Alpha = est
		case "beta0":
			p.Beta0 = est
		case "beta1":
			p.Beta1 = est
		default:
			return nil, errors.InvalidInput("unknown posterior parameter " + row[2])
		}
		p.PooledDraws = pooled
	}

	posteriors := make([]model.GammaPosterior, 0, len(order))
	for _, key := range order {
		posteriors = append(posteriors, *byKey[key])
	}
	return posteriors, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating table file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "writing table file")
	}
	return errors.Wrap(f.Sync(), "flushing table file")
}

func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("table file " + path)
		}
		return nil, errors.Wrap(err, "opening table file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(header)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading table file")
	}
	if len(records) == 0 {
		return nil, errors.InvalidInput("table file " + path + " is empty")
	}
	for i, col := range header {
		if records[0][i] != col {
			return nil, errors.InvalidInput("unexpected table header in " + path)
		}
	}
	return records[1:], nil
}

func parseFloats(fields []string) ([]float64, error) {
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
