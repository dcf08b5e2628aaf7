package campaign

import (
	"math"
	"testing"
)

func record(p Platform, goal, frac float64) Record {
	return Record{Platform: p, GoalUSD: goal, RaisedFrac: frac, MetGoal: frac >= 1}
}

func TestPartitionDataset_SplitsAndShifts(t *testing.T) {
	dataset := Dataset{
		record(Kickstarter, 1000, 1.5),
		record(Kickstarter, 2000, 0.3),
		record(Indiegogo, 500, 0),
		record(Indiegogo, 800, 2.0),
	}

	parts, err := PartitionDataset(dataset, PartitionConfig{})
	if err != nil {
		t.Fatalf("PartitionDataset failed: %v", err)
	}
	if len(parts) != 4 {
		t.Fatalf("expected 4 partitions, got %d", len(parts))
	}

	byKey := map[string]*Partition{}
	for _, p := range parts {
		byKey[p.Key()] = p
	}

	ksMet := byKey["kickstarter/met"]
	if len(ksMet.RaisedFrac) != 1 {
		t.Fatalf("expected 1 kickstarter/met record, got %d", len(ksMet.RaisedFrac))
	}
	if got, want := ksMet.RaisedFrac[0], 1.5-MetGoalOffset; math.Abs(got-want) > 1e-12 {
		t.Errorf("met-goal recentering: got %v, want %v", got, want)
	}

	iggUnder := byKey["indiegogo/under"]
	if got, want := iggUnder.RaisedFrac[0], UnderGoalEpsilon; got != want {
		t.Errorf("under-goal epsilon: got %v, want %v", got, want)
	}
	if iggUnder.RaisedFrac[0] <= 0 {
		t.Error("exact-zero fraction must land on positive support")
	}
}

func TestPartitionDataset_SubsampleIsDeterministicAndCapped(t *testing.T) {
	dataset := make(Dataset, 0, 600)
	for i := 0; i < 600; i++ {
		dataset = append(dataset, record(Kickstarter, float64(100+i), 0.2))
	}

	cfg := PartitionConfig{SubsampleCap: 100, Seed: 7}
	first, err := PartitionDataset(dataset, cfg)
	if err != nil {
		t.Fatalf("PartitionDataset failed: %v", err)
	}
	second, err := PartitionDataset(dataset, cfg)
	if err != nil {
		t.Fatalf("PartitionDataset failed: %v", err)
	}

	var p1, p2 *Partition
	for i := range first {
		if first[i].Key() == "kickstarter/under" {
			p1, p2 = first[i], second[i]
		}
	}
	if p1.SampleSize != 100 || len(p1.Goals) != 100 {
		t.Fatalf("expected capped sample of 100, got %d", p1.SampleSize)
	}
	if !p1.Subsampled || p1.SubsampleSeed != 7 {
		t.Errorf("subsample provenance not recorded: %+v", p1)
	}
	if p1.SourceSize != 600 {
		t.Errorf("expected source size 600, got %d", p1.SourceSize)
	}
	for i := range p1.Goals {
		if p1.Goals[i] != p2.Goals[i] {
			t.Fatalf("subsample not deterministic at index %d", i)
		}
	}
}

func TestPartitionDataset_RejectsContractViolations(t *testing.T) {
	bad := Dataset{record(Kickstarter, -5, 0.2)}
	if _, err := PartitionDataset(bad, PartitionConfig{}); err == nil {
		t.Fatal("expected error for non-positive goal")
	}

	unknown := Dataset{{Platform: "gofundme", GoalUSD: 100, RaisedFrac: 0.5}}
	if _, err := PartitionDataset(unknown, PartitionConfig{}); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestParsePlatformAndOutcome(t *testing.T) {
	if _, err := ParsePlatform("kickstarter"); err != nil {
		t.Errorf("kickstarter should parse: %v", err)
	}
	if _, err := ParsePlatform("patreon"); err == nil {
		t.Error("unknown platform must be rejected")
	}
	if _, err := ParseOutcome("met"); err != nil {
		t.Error("met should parse")
	}
	if _, err := ParseOutcome("partial"); err == nil {
		t.Error("unknown outcome must be rejected")
	}
}
