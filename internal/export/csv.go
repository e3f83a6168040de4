package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"bggstats/internal/boardgame"
)

// Header is the column layout of the csv artifact.
var Header = []string{
	"Game Title",
	"Game ID",
	"Year",
	"BGG Rank",
	"Average Rating",
	"Number of Voters",
	"Weight",
	"Weight Votes",
	"Owned",
	"Type",
	"Player Count",
	"Best %",
	"Best Votes",
	"Recommended %",
	"Recommended Votes",
	"Not Recommended %",
	"Not Recommended Votes",
	"Vote Count",
}

// WriteCSV writes one row per game and player count bucket. Games without any
// recommendation produce no rows, the header is always written.
func WriteCSV(w io.Writer, games *boardgame.Games, recs boardgame.Recommendations) error {
	writer := csv.NewWriter(w)

	err := writer.Write(Header)
	if err != nil {
		return err
	}
	for _, game := range games.All() {
		static := gameColumns(game)
		for _, rec := range recs[game.ID] {
			row := append(static[:len(static):len(static)], recommendationColumns(rec)...)
			err = writer.Write(row)
			if err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func gameColumns(game *boardgame.Game) []string {
	return []string{
		game.Title,
		game.ID,
		optionalInt(game.Year),
		optionalRank(game.Rank),
		formatFloat(game.AverageRating),
		strconv.Itoa(game.NumVoters),
		optionalFloat(game.Weight),
		optionalInt(game.WeightVotes),
		formatOwned(game.Owned),
		game.Type.String(),
	}
}

func recommendationColumns(rec boardgame.Recommendation) []string {
	return []string{
		rec.PlayerCount,
		formatFloat(rec.BestPct),
		strconv.Itoa(rec.BestVotes),
		formatFloat(rec.RecPct),
		strconv.Itoa(rec.RecommendedVotes),
		formatFloat(rec.NotRecPct),
		strconv.Itoa(rec.NotRecommendedVotes),
		strconv.Itoa(rec.VoteCount),
	}
}
