package campaign

import (
	"fmt"
	"math"
)

// Platform identifies the crowdfunding platform a campaign ran on.
// The two platforms differ in payout rule: Kickstarter is all-or-nothing,
// Indiegogo is keep-what-you-raise.
type Platform string

const (
	Kickstarter Platform = "kickstarter"
	Indiegogo   Platform = "indiegogo"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{Kickstarter, Indiegogo}
}

// Valid reports whether p is a known platform tag.
func (p Platform) Valid() bool {
	return p == Kickstarter || p == Indiegogo
}

// String returns the string representation
func (p Platform) String() string { return string(p) }

// ParsePlatform parses a string into a Platform, rejecting unknown tags.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// Outcome partitions campaigns by whether they met their funding goal.
type Outcome string

const (
	OutcomeMet   Outcome = "met"
	OutcomeUnder Outcome = "under"
)

// Outcomes lists both outcome classes in a stable order.
func Outcomes() []Outcome {
	return []Outcome{OutcomeUnder, OutcomeMet}
}

// Valid reports whether o is a known outcome tag.
func (o Outcome) Valid() bool {
	return o == OutcomeMet || o == OutcomeUnder
}

// String returns the string representation
func (o Outcome) String() string { return string(o) }

// ParseOutcome parses a string into an Outcome, rejecting unknown tags.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}

// Record is one normalized campaign observation as delivered by upstream
// ingestion. GoalUSD has already been currency-converted and RaisedFrac is
// raised amount divided by goal.
type Record struct {
	Platform   Platform `json:"platform"`
	GoalUSD    float64  `json:"goal_usd"`
	RaisedFrac float64  `json:"raised_frac"`
	MetGoal    bool     `json:"met_goal"`
}

// Outcome returns the outcome class this record belongs to.
func (r Record) Outcome() Outcome {
	if r.MetGoal {
		return OutcomeMet
	}
	return OutcomeUnder
}

// Validate checks the dataset contract invariants for a single record.
func (r Record) Validate() error {
	if !r.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", r.Platform)
	}
	if r.GoalUSD <= 0 || math.IsNaN(r.GoalUSD) || math.IsInf(r.GoalUSD, 0) {
		return fmt.Errorf("goal must be positive and finite, got %v", r.GoalUSD)
	}
	if r.RaisedFrac < 0 || math.IsNaN(r.RaisedFrac) || math.IsInf(r.RaisedFrac, 0) {
		return fmt.Errorf("raised fraction must be nonnegative and finite, got %v", r.RaisedFrac)
	}
	return nil
}

// Dataset is a finite, fully-materialized sequence of campaign records.
type Dataset []Record

// Validate checks every record against the dataset contract.
func (d Dataset) Validate() error {
	for i, r := range d {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// CountByPlatform tallies records per platform.
func (d Dataset) CountByPlatform() map[Platform]int {
	counts := make(map[Platform]int, 2)
	for _, r := range d {
		counts[r.Platform]++
	}
	return counts
}
