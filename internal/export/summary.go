package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"bggstats/internal/boardgame"
)

// Summary describes an existing csv artifact.
type Summary struct {
	Rows        int
	Games       int
	Owned       int
	BaseGames   int
	Expansions  int
	Unranked    int
	MissingData int
}

// SummarizeCSV reads a csv artifact and counts its rows and distinct games.
func SummarizeCSV(r io.Reader) (Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Summary{}, fmt.Errorf("empty file, expected a header")
	}
	if err != nil {
		return Summary{}, err
	}
	if !slices.Equal(header, Header) {
		return Summary{}, fmt.Errorf("unexpected header %v", header)
	}

	column := func(name string) int {
		return slices.Index(Header, name)
	}
	idCol := column("Game ID")
	ownedCol := column("Owned")
	typeCol := column("Type")
	rankCol := column("BGG Rank")
	yearCol := column("Year")

	var summary Summary
	seen := map[string]bool{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		summary.Rows++

		if seen[row[idCol]] {
			continue
		}
		seen[row[idCol]] = true
		summary.Games++

		if row[ownedCol] == owned {
			summary.Owned++
		}
		switch row[typeCol] {
		case boardgame.BaseGame.String():
			summary.BaseGames++
		case boardgame.Expansion.String():
			summary.Expansions++
		}
		if row[rankCol] == boardgame.Unranked.String() {
			summary.Unranked++
		}
		if row[yearCol] == notAvailable {
			summary.MissingData++
		}
	}
	return summary, nil
}
