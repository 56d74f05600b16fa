package domain

// Base points per game before bonuses and level multipliers.
const (
	MemoryBasePoints  = 50
	PuzzleBasePoints  = 30
	SortingBasePoints = 20
)

// MaxLevel bounds the level multiplier input.
const MaxLevel = 100

// MemoryResult is the raw outcome of a memory game.
type MemoryResult struct {
	Moves     int `json:"moves"`
	TimeTaken int `json:"timeTaken"`
	Level     int `json:"level"`
}

// PuzzleResult is the raw outcome of a puzzle game. PuzzleNumber is
// recorded but does not affect scoring.
type PuzzleResult struct {
	Moves        int `json:"moves"`
	TimeTaken    int `json:"timeTaken"`
	PuzzleNumber int `json:"puzzleNumber"`
}

// SortingResult is the raw outcome of a sorting game.
type SortingResult struct {
	CorrectSorts int `json:"correctSorts"`
	TotalItems   int `json:"totalItems"`
	TimeTaken    int `json:"timeTaken"`
	Level        int `json:"level"`
}

// Score is the outcome of the calculator with its bonus breakdown.
type Score struct {
	Points        int     `json:"points"`
	MoveBonus     int     `json:"moveBonus,omitempty"`
	TimeBonus     int     `json:"timeBonus"`
	AccuracyBonus int     `json:"accuracyBonus,omitempty"`
	Accuracy      float64 `json:"accuracy,omitempty"`
}

// ScoreMemory applies the memory tiers and a +50% per level multiplier.
func ScoreMemory(r MemoryResult) (Score, error) {
	if r.Moves < 0 || r.TimeTaken < 0 {
		return Score{}, Validation("moves and timeTaken must not be negative")
	}
	if r.Level < 1 || r.Level > MaxLevel {
		return Score{}, Validation("level must be between 1 and %d", MaxLevel)
	}

	var s Score
	switch {
	case r.Moves <= 15:
		s.MoveBonus = 20
	case r.Moves <= 20:
		s.MoveBonus = 15
	case r.Moves <= 25:
		s.MoveBonus = 10
	}
	switch {
	case r.TimeTaken < 60:
		s.TimeBonus = 10
	case r.TimeTaken < 90:
		s.TimeBonus = 5
	}

	// multiplier (1 + 0.5*(level-1)) expressed in halves: (level+1)/2
	raw := MemoryBasePoints + s.MoveBonus + s.TimeBonus
	s.Points = roundRatio(raw*(r.Level+1), 2)
	return s, nil
}

// ScorePuzzle applies the puzzle tiers; there is no level multiplier.
func ScorePuzzle(r PuzzleResult) (Score, error) {
	if r.Moves < 0 || r.TimeTaken < 0 {
		return Score{}, Validation("moves and timeTaken must not be negative")
	}

	var s Score
	switch {
	case r.Moves <= 50:
		s.MoveBonus = 15
	case r.Moves <= 100:
		s.MoveBonus = 10
	case r.Moves <= 150:
		s.MoveBonus = 5
	}
	switch {
	case r.TimeTaken < 120:
		s.TimeBonus = 10
	case r.TimeTaken < 180:
		s.TimeBonus = 5
	}
	s.Points = PuzzleBasePoints + s.MoveBonus + s.TimeBonus
	return s, nil
}

// ScoreSorting applies accuracy and time tiers and a +30% per level multiplier.
func ScoreSorting(r SortingResult) (Score, error) {
	if r.TotalItems <= 0 {
		return Score{}, Validation("totalItems must be greater than zero")
	}
	if r.CorrectSorts < 0 || r.CorrectSorts > r.TotalItems {
		return Score{}, Validation("correctSorts must be between 0 and totalItems")
	}
	if r.TimeTaken < 0 {
		return Score{}, Validation("timeTaken must not be negative")
	}
	if r.Level < 1 || r.Level > MaxLevel {
		return Score{}, Validation("level must be between 1 and %d", MaxLevel)
	}

	s := Score{Accuracy: float64(r.CorrectSorts) / float64(r.TotalItems) * 100}

	// compare correct/total against thresholds without floating point
	pct := func(threshold int) bool { return r.CorrectSorts*100 >= threshold*r.TotalItems }
	switch {
	case r.CorrectSorts == r.TotalItems:
		s.AccuracyBonus = 20
	case pct(90):
		s.AccuracyBonus = 15
	case pct(80):
		s.AccuracyBonus = 10
	case pct(70):
		s.AccuracyBonus = 5
	}
	switch {
	case r.TimeTaken < 30:
		s.TimeBonus = 10
	case r.TimeTaken < 45:
		s.TimeBonus = 5
	}

	// multiplier (1 + 0.3*(level-1)) expressed in tenths: 7 + 3*level
	raw := SortingBasePoints + s.AccuracyBonus + s.TimeBonus
	s.Points = roundRatio(raw*(7+3*r.Level), 10)
	return s, nil
}

// roundRatio returns n/d rounded half up for non-negative n and positive d.
func roundRatio(n, d int) int {
	return (2*n + d) / (2 * d)
}
