package bgg

import (
	"bggstats/internal/boardgame"
)

const suggestedPlayersPoll = "suggested_numplayers"

const (
	voteBest           = "Best"
	voteRecommended    = "Recommended"
	voteNotRecommended = "Not Recommended"
)

type poll struct {
	Name    string        `xml:"name,attr"`
	Results []pollResults `xml:"results"`
}

type pollResults struct {
	NumPlayers string       `xml:"numplayers,attr"`
	Results    []pollResult `xml:"result"`
}

type pollResult struct {
	Value    string `xml:"value,attr"`
	NumVotes int    `xml:"numvotes,attr"`
}

type tally struct {
	best, recommended, notRecommended int
}

// recommendationsFromPolls turns the suggested player count poll into one
// recommendation per bucket, in the order the buckets first appear. Open-ended
// buckets are dropped and a bucket listed twice has its votes added together.
func recommendationsFromPolls(polls []poll) []boardgame.Recommendation {
	var order []string
	tallies := map[string]*tally{}

	for _, p := range polls {
		if p.Name != suggestedPlayersPoll {
			continue
		}
		for _, group := range p.Results {
			if boardgame.IsOpenEnded(group.NumPlayers) {
				continue
			}
			t, ok := tallies[group.NumPlayers]
			if !ok {
				t = &tally{}
				tallies[group.NumPlayers] = t
				order = append(order, group.NumPlayers)
			}
			for _, vote := range group.Results {
				switch vote.Value {
				case voteBest:
					t.best += vote.NumVotes
				case voteRecommended:
					t.recommended += vote.NumVotes
				case voteNotRecommended:
					t.notRecommended += vote.NumVotes
				}
			}
		}
	}

	recs := make([]boardgame.Recommendation, 0, len(order))
	for _, label := range order {
		t := tallies[label]
		rec, err := boardgame.NewRecommendation(label, t.best, t.recommended, t.notRecommended)
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}
