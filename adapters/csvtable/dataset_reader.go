package csvtable

import (
	"encoding/csv"
	"os"
	"strconv"

	"fundcast/domain/campaign"
	"fundcast/internal/errors"
)

var datasetHeader = []string{"platform", "goal_usd", "raised_frac", "met_goal"}

// ReadDataset loads a normalized campaign-record file produced by upstream
// ingestion. Schema mapping and currency conversion happen before this
// point; records that violate the dataset contract are rejected, not fixed.
func ReadDataset(path string) (campaign.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("dataset file " + path)
		}
		return nil, errors.Wrap(err, "opening dataset file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(datasetHeader)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading dataset file")
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("dataset file is empty")
	}
	for i, col := range datasetHeader {
		if rows[0][i] != col {
			return nil, errors.InvalidInput("unexpected dataset header in " + path)
		}
	}

	records := make(campaign.Dataset, 0, len(rows)-1)
	for _, row := range rows[1:] {
		platform, err := campaign.ParsePlatform(row[0])
		if err != nil {
			return nil, errors.Wrap(err, "dataset row")
		}
		goal, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, errors.Wrap(err, "dataset row goal")
		}
		frac, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, errors.Wrap(err, "dataset row raised fraction")
		}
		met, err := strconv.ParseBool(row[3])
		if err != nil {
			return nil, errors.Wrap(err, "dataset row outcome flag")
		}
		records = append(records, campaign.Record{
			Platform:   platform,
			GoalUSD:    goal,
			RaisedFrac: frac,
			MetGoal:    met,
		})
	}

	if err := records.Validate(); err != nil {
		return nil, errors.Wrap(err, "dataset contract violation")
	}
	return records, nil
}
