package services

import (
	"reflect"
	"testing"

	"boardgame-tracker/models"
)

func entry(id string, rounds ...float64) PlacementEntry {
	e := PlacementEntry{ID: id}
	for _, r := range rounds {
		e.RoundScores = append(e.RoundScores, f64(r))
	}
	return e
}

func inTeam(e PlacementEntry, team string) PlacementEntry {
	e.TeamID = &team
	return e
}

var highest = ScoringRules{WinCondition: models.WinHighestScore, RoundsScore: models.RoundsAggregate}

func placements(t *testing.T, results []PlacementResult) []int {
	t.Helper()
	out := make([]int, len(results))
	for i, r := range results {
		if r.Placement == nil {
			t.Fatalf("result %s has no placement", r.ID)
		}
		out[i] = *r.Placement
	}
	return out
}

// --------------------------------------------------------------------------
// Ranked modes
// --------------------------------------------------------------------------

func TestHighestScoreTiesSkip(t *testing.T) {
	got := CalculatePlacements([]PlacementEntry{
		entry("a", 10, 10),
		entry("b", 15, 5),
		entry("c", 5, 3),
		entry("d", 30, 0),
	}, highest)

	want := []int{2, 2, 4, 1}
	if p := placements(t, got); !reflect.DeepEqual(p, want) {
		t.Errorf("placements = %v, want %v", p, want)
	}
	if *got[0].Score != 20 {
		t.Errorf("a score = %v, want 20", *got[0].Score)
	}
	for i, r := range got {
		if r.Winner != (i == 3) {
			t.Errorf("%s winner = %v", r.ID, r.Winner)
		}
	}
}

func TestSharedFirstPlaceMakesSeveralWinners(t *testing.T) {
	got := CalculatePlacements([]PlacementEntry{entry("a", 20), entry("b", 20), entry("c", 10)}, highest)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{1, 1, 3}) {
		t.Errorf("placements = %v, want [1 1 3]", p)
	}
	if !got[0].Winner || !got[1].Winner || got[2].Winner {
		t.Errorf("winners = %v %v %v, want true true false", got[0].Winner, got[1].Winner, got[2].Winner)
	}
}

func TestLowestScore(t *testing.T) {
	rules := ScoringRules{WinCondition: models.WinLowestScore, RoundsScore: models.RoundsAggregate}
	got := CalculatePlacements([]PlacementEntry{entry("a", 7), entry("b", 3), entry("c", 9)}, rules)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{2, 1, 3}) {
		t.Errorf("placements = %v, want [2 1 3]", p)
	}
}

func TestCalculationIsDeterministic(t *testing.T) {
	entries := []PlacementEntry{entry("z", 5), entry("y", 5), entry("x", 1), {ID: "w"}}
	first := CalculatePlacements(entries, highest)
	for i := 0; i < 20; i++ {
		if again := CalculatePlacements(entries, highest); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestUnscoredRoundsCountAsZeroInAggregate(t *testing.T) {
	got := CalculatePlacements([]PlacementEntry{{ID: "a", RoundScores: []*float64{nil}}, entry("b", -2)}, highest)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{1, 2}) {
		t.Errorf("placements = %v, want [1 2]", p)
	}
}

func TestTargetScore(t *testing.T) {
	rules := ScoringRules{WinCondition: models.WinTargetScore, RoundsScore: models.RoundsAggregate, TargetScore: 10}
	got := CalculatePlacements([]PlacementEntry{entry("a", 12), entry("b", 10), entry("c", 7), entry("d", 3)}, rules)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{1, 1, 3, 4}) {
		t.Errorf("placements = %v, want [1 1 3 4]", p)
	}

	rules.TargetTiebreak = models.WinLowestScore
	got = CalculatePlacements([]PlacementEntry{entry("a", 12), entry("c", 7), entry("d", 3)}, rules)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{1, 3, 2}) {
		t.Errorf("lowest tiebreak placements = %v, want [1 3 2]", p)
	}
}

func TestBestOf(t *testing.T) {
	rules := ScoringRules{WinCondition: models.WinHighestScore, RoundsScore: models.RoundsBestOf}
	got := CalculatePlacements([]PlacementEntry{entry("a", 3, 9, 1), entry("b", 8, 8, 8)}, rules)
	if *got[0].Score != 9 || *got[1].Score != 8 {
		t.Errorf("scores = %v, %v, want 9, 8", *got[0].Score, *got[1].Score)
	}
	if p := placements(t, got); !reflect.DeepEqual(p, []int{1, 2}) {
		t.Errorf("placements = %v, want [1 2]", p)
	}

	rules.WinCondition = models.WinLowestScore
	got = CalculatePlacements([]PlacementEntry{entry("a", 3, 9, 1), entry("b", 8, 8, 8)}, rules)
	if *got[0].Score != 1 {
		t.Errorf("lowest best-of score = %v, want 1", *got[0].Score)
	}
}

func TestManualRoundsScoreRanksByFinalScore(t *testing.T) {
	rules := ScoringRules{WinCondition: models.WinHighestScore, RoundsScore: models.RoundsManual}
	got := CalculatePlacements([]PlacementEntry{
		{ID: "a", ManualScore: f64(4), RoundScores: []*float64{f64(100)}},
		{ID: "b", ManualScore: f64(7)},
	}, rules)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{2, 1}) {
		t.Errorf("placements = %v, want [2 1]", p)
	}
}

func TestTeamsRankAsOneUnit(t *testing.T) {
	a := inTeam(entry("a", 30), "red")
	b := inTeam(PlacementEntry{ID: "b", RoundScores: []*float64{nil}}, "red")
	c := entry("c", 20)

	got := CalculatePlacements([]PlacementEntry{c, b, a}, highest)
	if p := placements(t, got); !reflect.DeepEqual(p, []int{2, 1, 1}) {
		t.Errorf("placements = %v, want [2 1 1]", p)
	}
	if *got[1].Score != 30 {
		t.Errorf("team member b score = %v, want the team's 30", *got[1].Score)
	}
	if !got[1].Winner || !got[2].Winner {
		t.Errorf("both team members should win")
	}
}

// --------------------------------------------------------------------------
// Hand-set modes
// --------------------------------------------------------------------------

func TestManualWinConditionKeepsFlags(t *testing.T) {
	rules := ScoringRules{WinCondition: models.WinManual, RoundsScore: models.RoundsAggregate}
	got := CalculatePlacements([]PlacementEntry{
		{ID: "a", RoundScores: []*float64{f64(1)}},
		{ID: "b", RoundScores: []*float64{f64(9)}, ManualWinner: true},
	}, rules)
	if got[0].Placement != nil || got[1].Placement != nil {
		t.Errorf("manual mode should not place")
	}
	if got[0].Winner || !got[1].Winner {
		t.Errorf("winners = %v %v, want false true", got[0].Winner, got[1].Winner)
	}
	if *got[1].Score != 9 {
		t.Errorf("score = %v, want 9", *got[1].Score)
	}
}

func TestCoopAndNoneBypassRanking(t *testing.T) {
	coop := ScoringRules{WinCondition: models.WinHighestScore, RoundsScore: models.RoundsAggregate, IsCoop: true}
	got := CalculatePlacements([]PlacementEntry{
		{ID: "a", ManualWinner: true},
		{ID: "b", ManualWinner: true},
	}, coop)
	for _, r := range got {
		if r.Placement != nil || !r.Winner {
			t.Errorf("coop %s: placement %v winner %v", r.ID, r.Placement, r.Winner)
		}
	}

	none := ScoringRules{WinCondition: models.WinHighestScore, RoundsScore: models.RoundsNone}
	got = CalculatePlacements([]PlacementEntry{entry("a", 5)}, none)
	if got[0].Score != nil || got[0].Placement != nil {
		t.Errorf("none mode: score %v placement %v, want nil nil", got[0].Score, got[0].Placement)
	}
}
