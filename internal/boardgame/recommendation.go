package boardgame

import (
	"fmt"
	"strings"
)

// Recommendation is the player count poll result for one bucket of one game.
type Recommendation struct {
	PlayerCount string

	BestVotes           int
	RecommendedVotes    int
	NotRecommendedVotes int
	VoteCount           int

	// percentages are rounded to one decimal and are all 0 when VoteCount is 0
	BestPct   float64
	RecPct    float64
	NotRecPct float64
}

// Recommendations maps a game id to its buckets in poll order.
type Recommendations map[string][]Recommendation

// IsOpenEnded reports whether a bucket label is an open-ended range like "10+".
func IsOpenEnded(label string) bool {
	return strings.Contains(label, "+")
}

// NewRecommendation tallies one bucket's votes, open-ended buckets cannot be
// placed on a fixed player count scale and are rejected.
func NewRecommendation(label string, best, recommended, notRecommended int) (Recommendation, error) {
	if IsOpenEnded(label) {
		return Recommendation{}, fmt.Errorf("open-ended player count bucket %q", label)
	}
	if best < 0 || recommended < 0 || notRecommended < 0 {
		return Recommendation{}, fmt.Errorf("negative vote count in bucket %q", label)
	}

	r := Recommendation{
		PlayerCount:         label,
		BestVotes:           best,
		RecommendedVotes:    recommended,
		NotRecommendedVotes: notRecommended,
		VoteCount:           best + recommended + notRecommended,
	}
	if r.VoteCount > 0 {
		r.BestPct = percentage(best, r.VoteCount)
		r.RecPct = percentage(recommended, r.VoteCount)
		r.NotRecPct = percentage(notRecommended, r.VoteCount)
	}
	return r, nil
}

func percentage(n, total int) float64 {
	return Round(100*float64(n)/float64(total), 1)
}
