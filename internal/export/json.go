package export

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"bggstats/internal/boardgame"
)

type jsonGame struct {
	Title         string           `json:"Game Title"`
	ID            string           `json:"Game ID"`
	Year          any              `json:"Year"`
	Rank          any              `json:"BGG Rank"`
	AverageRating float64          `json:"Average Rating"`
	NumVoters     int              `json:"Number of Voters"`
	Weight        any              `json:"Weight"`
	WeightVotes   any              `json:"Weight Votes"`
	Owned         string           `json:"Owned"`
	Type          string           `json:"Type"`
	PlayerCounts  jsonPlayerCounts `json:"Player Counts"`
}

type jsonRecommendation struct {
	label string

	PlayerCount         any     `json:"Player Count"`
	BestPct             float64 `json:"Best %"`
	BestVotes           int     `json:"Best Votes"`
	RecPct              float64 `json:"Recommended %"`
	RecommendedVotes    int     `json:"Recommended Votes"`
	NotRecPct           float64 `json:"Not Recommended %"`
	NotRecommendedVotes int     `json:"Not Recommended Votes"`
	VoteCount           int     `json:"Vote Count"`
}

// jsonPlayerCounts is an object keyed by bucket label that keeps poll order.
type jsonPlayerCounts []jsonRecommendation

func (p jsonPlayerCounts) MarshalJSON() ([]byte, error) {
	var buff bytes.Buffer
	buff.WriteByte('{')
	for i, rec := range p {
		if i > 0 {
			buff.WriteByte(',')
		}
		key, err := json.Marshal(rec.label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		buff.Write(key)
		buff.WriteByte(':')
		buff.Write(value)
	}
	buff.WriteByte('}')
	return buff.Bytes(), nil
}

// WriteJSON writes an array with one object per game, in the games' order. Games
// without recommendations are included with an empty "Player Counts" object.
func WriteJSON(w io.Writer, games *boardgame.Games, recs boardgame.Recommendations) error {
	out := make([]jsonGame, 0, games.Len())
	for _, game := range games.All() {
		out = append(out, newJsonGame(game, recs[game.ID]))
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	return encoder.Encode(out)
}

func newJsonGame(game *boardgame.Game, recs []boardgame.Recommendation) jsonGame {
	counts := make(jsonPlayerCounts, 0, len(recs))
	for _, rec := range recs {
		counts = append(counts, jsonRecommendation{
			label:               rec.PlayerCount,
			PlayerCount:         jsonPlayerCount(rec.PlayerCount),
			BestPct:             rec.BestPct,
			BestVotes:           rec.BestVotes,
			RecPct:              rec.RecPct,
			RecommendedVotes:    rec.RecommendedVotes,
			NotRecPct:           rec.NotRecPct,
			NotRecommendedVotes: rec.NotRecommendedVotes,
			VoteCount:           rec.VoteCount,
		})
	}

	return jsonGame{
		Title:         game.Title,
		ID:            game.ID,
		Year:          jsonOptional(game.Year),
		Rank:          jsonRank(game.Rank),
		AverageRating: game.AverageRating,
		NumVoters:     game.NumVoters,
		Weight:        jsonOptional(game.Weight),
		WeightVotes:   jsonOptional(game.WeightVotes),
		Owned:         formatOwned(game.Owned),
		Type:          game.Type.String(),
		PlayerCounts:  counts,
	}
}

// jsonPlayerCount is the label as a number whenever it is one.
func jsonPlayerCount(label string) any {
	n, err := strconv.Atoi(label)
	if err != nil {
		return label
	}
	return n
}

func jsonOptional[T int | float64](v *T) any {
	if v == nil {
		return notAvailable
	}
	return *v
}

// jsonRank renders Unranked as "inf" since JSON has no infinity.
func jsonRank(r *boardgame.Rank) any {
	if r == nil {
		return notAvailable
	}
	if !r.Ranked() {
		return r.String()
	}
	return int(*r)
}
