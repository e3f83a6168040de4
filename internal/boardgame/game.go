package boardgame

import (
	"fmt"
	"math"
	"strconv"
)

// Type distinguishes base games from expansions.
type Type int

const (
	BaseGame Type = iota
	Expansion
)

func (t Type) String() string {
	switch t {
	case BaseGame:
		return "Base Game"
	case Expansion:
		return "Expansion"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Rank is a game's position in the overall board game ranking.
type Rank int

// Unranked is assigned to games the catalog does not rank. It stands in for +inf:
// it only ever affects ordering and never excludes a game.
const Unranked Rank = math.MaxInt32

func (r Rank) Ranked() bool {
	return r != Unranked
}

// Less orders ranks ascending with Unranked after every ranked game.
func (r Rank) Less(other Rank) bool {
	return r < other
}

// Float returns the rank as a float, with Unranked mapped to +inf.
func (r Rank) Float() float64 {
	if !r.Ranked() {
		return math.Inf(1)
	}
	return float64(r)
}

func (r Rank) String() string {
	if !r.Ranked() {
		return "inf"
	}
	return strconv.Itoa(int(r))
}

// Game is the per-game record. It starts out as a stub produced by the catalog
// crawler or the collection fetcher and is later enriched with statistics.
// Nil optional fields have not been fetched.
type Game struct {
	ID            string
	Title         string
	Type          Type
	AverageRating float64
	NumVoters     int
	Owned         bool

	Year        *int
	Weight      *float64
	WeightVotes *int
	Rank        *Rank
}

// Stats are the statistics endpoint's per-item fields.
type Stats struct {
	Year        int
	Weight      float64
	WeightVotes int
	Rank        Rank
}

// ApplyStats overwrites the statistics fields of the game.
func (g *Game) ApplyStats(s Stats) {
	year := s.Year
	weight := s.Weight
	weightVotes := s.WeightVotes
	rank := s.Rank

	g.Year = &year
	g.Weight = &weight
	g.WeightVotes = &weightVotes
	g.Rank = &rank
}

// EffectiveRank is the game's rank for ordering, games without statistics are
// treated as Unranked.
func (g *Game) EffectiveRank() Rank {
	if g.Rank == nil {
		return Unranked
	}
	return *g.Rank
}

// ValidID reports whether id is a non-empty, all-digit catalog id.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Round rounds x to the given number of decimals. The exact decimal value of x is
// rounded, so 2.675 (stored as 2.67499...) becomes 2.67, and exact ties go to even.
func Round(x float64, decimals int) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', decimals, 64), 64)
	if err != nil {
		return x
	}
	return rounded
}
