package services

import (
	"sort"

	"boardgame-tracker/models"
)

// PlacementEntry is one match player as seen by the calculator.
// RoundScores are in round order; nil means the round was not scored.
type PlacementEntry struct {
	ID           string
	TeamID       *string
	RoundScores  []*float64
	ManualScore  *float64
	ManualWinner bool
}

// ScoringRules is the subset of a scoresheet that drives ranking.
type ScoringRules struct {
	WinCondition   models.WinCondition
	RoundsScore    models.RoundsScore
	TargetScore    float64
	TargetTiebreak models.WinCondition
	IsCoop         bool
}

// RulesFor extracts scoring rules from a scoresheet.
func RulesFor(s *models.Scoresheet) ScoringRules {
	return ScoringRules{
		WinCondition:   s.WinCondition,
		RoundsScore:    s.RoundsScore,
		TargetScore:    s.TargetScore,
		TargetTiebreak: s.TargetTiebreak,
		IsCoop:         s.IsCoop,
	}
}

// Ranked reports whether placements are derived rather than set by hand.
func (r ScoringRules) Ranked() bool {
	return r.WinCondition != models.WinManual && !r.IsCoop && r.RoundsScore != models.RoundsNone
}

type PlacementResult struct {
	ID        string
	Score     *float64
	Placement *int
	Winner    bool
}

// unit is a player, or a team ranked as one.
type unit struct {
	key     string
	members []int // indexes into the input
	score   *float64
}

// CalculatePlacements ranks players (teams rank as one unit) under a
// scoresheet's rules. Results follow the input order. The function is pure:
// identical inputs always give identical outputs.
//
// Ties share a placement and the next distinct score skips by the size of the
// tied group (1, 1, 3).
func CalculatePlacements(entries []PlacementEntry, rules ScoringRules) []PlacementResult {
	results := make([]PlacementResult, len(entries))
	for i, e := range entries {
		results[i].ID = e.ID
	}

	if !rules.Ranked() {
		for i, e := range entries {
			if e.ManualScore != nil {
				results[i].Score = copyFloat(e.ManualScore)
			} else if rules.RoundsScore != models.RoundsNone {
				results[i].Score = aggregate(e.RoundScores, rules)
			}
			results[i].Winner = e.ManualWinner
		}
		return results
	}

	units := buildUnits(entries, rules)

	var placed []placedUnit
	switch rules.WinCondition {
	case models.WinTargetScore:
		placed = rankTarget(units, rules)
	case models.WinLowestScore:
		placed = rankCompetition(units, false, 0)
	default:
		placed = rankCompetition(units, true, 0)
	}

	for _, p := range placed {
		for _, idx := range p.u.members {
			placement := p.placement
			results[idx].Score = copyFloat(p.u.score)
			results[idx].Placement = &placement
			results[idx].Winner = placement == 1
		}
	}
	return results
}

type placedUnit struct {
	u         unit
	placement int
}

func buildUnits(entries []PlacementEntry, rules ScoringRules) []unit {
	byKey := make(map[string]*unit)
	var order []string
	for i, e := range entries {
		key := "player:" + e.ID
		if e.TeamID != nil {
			key = "team:" + *e.TeamID
		}
		u, ok := byKey[key]
		if !ok {
			u = &unit{key: key}
			byKey[key] = u
			order = append(order, key)
		}
		u.members = append(u.members, i)
	}

	units := make([]unit, 0, len(order))
	for _, key := range order {
		u := byKey[key]
		// members share the team score; read it from the first scored member by id
		members := append([]int(nil), u.members...)
		sort.SliceStable(members, func(a, b int) bool {
			return entries[members[a]].ID < entries[members[b]].ID
		})
		if rules.RoundsScore == models.RoundsManual {
			for _, idx := range members {
				if entries[idx].ManualScore != nil {
					u.score = copyFloat(entries[idx].ManualScore)
					break
				}
			}
		} else {
			u.score = aggregate(teamRounds(entries, members), rules)
		}
		units = append(units, *u)
	}
	return units
}

// teamRounds merges per-round scores of the given members, taking the first
// non-nil value for each round.
func teamRounds(entries []PlacementEntry, members []int) []*float64 {
	if len(members) == 1 {
		return entries[members[0]].RoundScores
	}
	n := 0
	for _, idx := range members {
		if len(entries[idx].RoundScores) > n {
			n = len(entries[idx].RoundScores)
		}
	}
	rounds := make([]*float64, n)
	for r := 0; r < n; r++ {
		for _, idx := range members {
			rs := entries[idx].RoundScores
			if r < len(rs) && rs[r] != nil {
				rounds[r] = rs[r]
				break
			}
		}
	}
	return rounds
}

func aggregate(rounds []*float64, rules ScoringRules) *float64 {
	switch rules.RoundsScore {
	case models.RoundsNone:
		return nil
	case models.RoundsBestOf:
		var best *float64
		lowest := rules.WinCondition == models.WinLowestScore
		for _, s := range rounds {
			if s == nil {
				continue
			}
			if best == nil || (lowest && *s < *best) || (!lowest && *s > *best) {
				v := *s
				best = &v
			}
		}
		return best
	default:
		total := 0.0
		for _, s := range rounds {
			if s != nil {
				total += *s
			}
		}
		return &total
	}
}

// rankCompetition orders units and assigns standard competition ranks
// starting after offset. Unscored units go last and tie with each other.
func rankCompetition(units []unit, highFirst bool, offset int) []placedUnit {
	sorted := append([]unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].score, sorted[j].score
		switch {
		case a == nil && b == nil:
			return sorted[i].key < sorted[j].key
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			if highFirst {
				return *a > *b
			}
			return *a < *b
		}
		return sorted[i].key < sorted[j].key
	})

	placed := make([]placedUnit, len(sorted))
	for i, u := range sorted {
		placement := offset + i + 1
		if i > 0 && sameScore(sorted[i-1].score, u.score) {
			placement = placed[i-1].placement
		}
		placed[i] = placedUnit{u: u, placement: placement}
	}
	return placed
}

// rankTarget puts every unit at or above the target first; the rest are ranked
// by the tiebreak condition (Highest unless told otherwise).
func rankTarget(units []unit, rules ScoringRules) []placedUnit {
	var hit, miss []unit
	for _, u := range units {
		if u.score != nil && *u.score >= rules.TargetScore {
			hit = append(hit, u)
		} else {
			miss = append(miss, u)
		}
	}
	sort.SliceStable(hit, func(i, j int) bool { return hit[i].key < hit[j].key })

	placed := make([]placedUnit, 0, len(units))
	for _, u := range hit {
		placed = append(placed, placedUnit{u: u, placement: 1})
	}
	highFirst := rules.TargetTiebreak != models.WinLowestScore
	return append(placed, rankCompetition(miss, highFirst, len(hit))...)
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
