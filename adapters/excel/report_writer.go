// Package excel writes the human-readable fit-report workbook: one sheet of
// logistic coefficients, one sheet of Gamma posteriors with credible
// intervals, and a run-manifest sheet.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"fundcast/app"
	"fundcast/internal/errors"
)

// ReportWriter renders a FitResult as an xlsx workbook.
type ReportWriter struct {
	filePath string
}

// NewReportWriter creates a report writer targeting the given file path.
func NewReportWriter(filePath string) *ReportWriter {
	return &ReportWriter{filePath: filePath}
}

// Write renders the workbook. Diagnostic only: the interchange artifact is
// the flat model table, not this report.
func (w *ReportWriter) Write(result *app.FitResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeLogisticSheet(f, result); err != nil {
		return err
	}
	if err := w.writePosteriorSheet(f, result); err != nil {
		return err
	}
	if err := w.writeRunSheet(f, result); err != nil {
		return err
	}

	// Drop the default sheet left over from workbook creation.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "finalizing report workbook")
	}

	if err := f.SaveAs(w.filePath); err != nil {
		return errors.Wrap(err, "saving report workbook")
	}
	return nil
}

func (w *ReportWriter) writeLogisticSheet(f *excelize.File, result *app.FitResult) error {
	const sheet = "Logistic"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating logistic sheet")
	}

	rows := [][]interface{}{
		{"coefficient", "estimate", "std_err", "p_value"},
		{"intercept", result.Logistic.Intercept.Estimate, result.Logistic.Intercept.StdErr, result.Logistic.Intercept.PValue},
		{"log10_goal", result.Logistic.LogGoalSlope.Estimate, result.Logistic.LogGoalSlope.StdErr, result.Logistic.LogGoalSlope.PValue},
		{"is_kickstarter", result.Logistic.PlatformEffect.Estimate, result.Logistic.PlatformEffect.StdErr, result.Logistic.PlatformEffect.PValue},
		{"interaction", result.Logistic.Interaction.Estimate, result.Logistic.Interaction.StdErr, result.Logistic.Interaction.PValue},
	}
	return writeRows(f, sheet, rows)
}

func (w *ReportWriter) writePosteriorSheet(f *excelize.File, result *app.FitResult) error {
	const sheet = "Posteriors"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating posterior sheet")
	}

	rows := [][]interface{}{
		{"platform", "outcome", "parameter", "q2.5", "median", "q97.5", "pooled_draws"},
	}
	for _, p := range result.Posteriors {
		for _, entry := range []struct {
			name string
			lo   float64
			mid  float64
			hi   float64
		}{
			{"alpha", p.Alpha.Lo, p.Alpha.Median, p.Alpha.Hi},
			{"beta0", p.Beta0.Lo, p.Beta0.Median, p.Beta0.Hi},
			{"beta1", p.Beta1.Lo, p.Beta1.Median, p.Beta1.Hi},
		} {
			rows = append(rows, []interface{}{
				p.Platform.String(), p.Outcome.String(), entry.name,
				entry.lo, entry.mid, entry.hi, p.PooledDraws,
			})
		}
	}
	return writeRows(f, sheet, rows)
}

func (w *ReportWriter) writeRunSheet(f *excelize.File, result *app.FitResult) error {
	const sheet = "Run"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating run sheet")
	}

	rows := [][]interface{}{
		{"run_id", result.Manifest.RunID.String()},
		{"base_seed", result.Manifest.BaseSeed},
		{"records", result.Manifest.Records},
		{"runtime_ms", result.Manifest.RuntimeMs},
		{},
		{"partition", "source_size", "sample_size", "subsampled", "chains", "mean_acceptance", "alpha_median_spread"},
	}
	for _, p := range result.Manifest.Partitions {
		acceptance := 0.0
		for _, c := range p.Chains {
			acceptance += c.AcceptanceRate
		}
		if len(p.Chains) > 0 {
			acceptance /= float64(len(p.Chains))
		}
		rows = append(rows, []interface{}{
			p.Key, p.SourceSize, p.SampleSize, p.Subsampled, len(p.Chains), acceptance, p.AlphaMedianSpread,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "computing cell coordinates")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, fmt.Sprintf("writing %s row %d", sheet, i+1))
		}
	}
	return nil
}
