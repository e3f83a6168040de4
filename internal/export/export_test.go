package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bggstats/internal/boardgame"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustRecommendation(t testing.TB, label string, best, rec, notRec int) boardgame.Recommendation {
	t.Helper()
	r, err := boardgame.NewRecommendation(label, best, rec, notRec)
	require.NoError(t, err)
	return r
}

func fixture(t testing.TB) (*boardgame.Games, boardgame.Recommendations) {
	tigris := boardgame.Game{ID: "42", Title: "Tigris & Euphrates", Type: boardgame.BaseGame, AverageRating: 7.69, NumVoters: 21000, Owned: true}
	tigris.ApplyStats(boardgame.Stats{Year: 1997, Weight: 3.46, WeightVotes: 1201, Rank: 120})

	buildings := boardgame.Game{ID: "43", Title: "Civilization Buildings", Type: boardgame.Expansion, AverageRating: 6.9, NumVoters: 120}
	buildings.ApplyStats(boardgame.Stats{Year: 2001, Rank: boardgame.Unranked})

	lost := boardgame.Game{ID: "7", Title: "Lost, Statistics", Type: boardgame.BaseGame, AverageRating: 6.5, NumVoters: 77}
	silent := boardgame.Game{ID: "8", Title: "No Poll", Type: boardgame.BaseGame, AverageRating: 6.1, NumVoters: 51}

	games := boardgame.NewGames(tigris, buildings, lost, silent)
	recs := boardgame.Recommendations{
		"42": {
			mustRecommendation(t, "4", 3, 1, 0),
			mustRecommendation(t, "2", 0, 0, 0),
		},
		"43": {mustRecommendation(t, "2", 1, 1, 1)},
		"7":  {mustRecommendation(t, "3", 2, 0, 0)},
		"8":  {},
	}
	return games, recs
}

func TestWriteCSV(t *testing.T) {
	games, recs := fixture(t)

	var buff bytes.Buffer
	err := WriteCSV(&buff, games, recs)
	require.NoError(t, err)

	expect := strings.Join([]string{
		"Game Title,Game ID,Year,BGG Rank,Average Rating,Number of Voters,Weight,Weight Votes,Owned,Type,Player Count,Best %,Best Votes,Recommended %,Recommended Votes,Not Recommended %,Not Recommended Votes,Vote Count",
		"Tigris & Euphrates,42,1997,120,7.69,21000,3.46,1201,Owned,Base Game,4,75,3,25,1,0,0,4",
		"Tigris & Euphrates,42,1997,120,7.69,21000,3.46,1201,Owned,Base Game,2,0,0,0,0,0,0,0",
		"Civilization Buildings,43,2001,inf,6.9,120,0,0,Not Owned,Expansion,2,33.3,1,33.3,1,33.3,1,3",
		`"Lost, Statistics",7,N/A,N/A,6.5,77,N/A,N/A,Not Owned,Base Game,3,100,2,0,0,0,0,2`,
		"",
	}, "\n")
	if diff := cmp.Diff(expect, buff.String()); diff != "" {
		t.Fatal("unexpected csv (-want +got)\n", diff)
	}
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	games, _ := fixture(t)

	var buff bytes.Buffer
	err := WriteCSV(&buff, games, boardgame.Recommendations{})
	require.NoError(t, err)
	require.Equal(t, strings.Join(Header, ",")+"\n", buff.String())
}

func TestWriteJSON(t *testing.T) {
	games, recs := fixture(t)

	var buff bytes.Buffer
	err := WriteJSON(&buff, games, recs)
	require.NoError(t, err)
	raw := buff.String()

	require.Contains(t, raw, `"Game Title": "Tigris & Euphrates"`, "html characters are not escaped")
	require.Contains(t, raw, "\n    {\n        \"Game Title\"", "indented with four spaces")
	require.Less(t, strings.Index(raw, `"4": {`), strings.Index(raw, `"2": {`), "buckets keep poll order")

	var decoded []map[string]any
	err = json.Unmarshal(buff.Bytes(), &decoded)
	require.NoError(t, err)
	require.Len(t, decoded, 4, "every game is written, even without recommendations")

	tigris := decoded[0]
	require.Equal(t, "42", tigris["Game ID"])
	require.Equal(t, 1997.0, tigris["Year"])
	require.Equal(t, 120.0, tigris["BGG Rank"])
	require.Equal(t, "Owned", tigris["Owned"])
	require.Equal(t, "Base Game", tigris["Type"])

	counts := tigris["Player Counts"].(map[string]any)
	require.Len(t, counts, 2)
	four := counts["4"].(map[string]any)
	expect := map[string]any{
		"Player Count":          4.0,
		"Best %":                75.0,
		"Best Votes":            3.0,
		"Recommended %":         25.0,
		"Recommended Votes":     1.0,
		"Not Recommended %":     0.0,
		"Not Recommended Votes": 0.0,
		"Vote Count":            4.0,
	}
	if diff := cmp.Diff(expect, four); diff != "" {
		t.Fatal("unexpected player count (-want +got)\n", diff)
	}

	require.Equal(t, "inf", decoded[1]["BGG Rank"])
	require.Equal(t, "Expansion", decoded[1]["Type"])

	lost := decoded[2]
	require.Equal(t, "N/A", lost["Year"])
	require.Equal(t, "N/A", lost["BGG Rank"])
	require.Equal(t, "N/A", lost["Weight"])
	require.Equal(t, "N/A", lost["Weight Votes"])
	require.Equal(t, "Not Owned", lost["Owned"])

	require.Equal(t, map[string]any{}, decoded[3]["Player Counts"])
}

func TestWriteSQLite(t *testing.T) {
	games, recs := fixture(t)
	path := filepath.Join(t.TempDir(), "out.db")

	// stale content must not survive
	err := os.WriteFile(path, []byte("not a database"), 0644)
	require.NoError(t, err)

	err = WriteSQLite(context.Background(), path, games, recs)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("select id, owned, year, bgg_rank from games order by position")
	require.NoError(t, err)
	defer rows.Close()

	type gameRow struct {
		ID    string
		Owned bool
		Year  sql.NullInt64
		Rank  sql.NullInt64
	}
	var got []gameRow
	for rows.Next() {
		var r gameRow
		err = rows.Scan(&r.ID, &r.Owned, &r.Year, &r.Rank)
		require.NoError(t, err)
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	expect := []gameRow{
		{ID: "42", Owned: true, Year: sql.NullInt64{Int64: 1997, Valid: true}, Rank: sql.NullInt64{Int64: 120, Valid: true}},
		{ID: "43", Year: sql.NullInt64{Int64: 2001, Valid: true}},
		{ID: "7"},
		{ID: "8"},
	}
	if diff := cmp.Diff(expect, got); diff != "" {
		t.Fatal("unexpected games (-want +got)\n", diff)
	}

	var count int
	err = db.QueryRow("select count(*) from recommendations").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 5, count)

	var bestPct float64
	err = db.QueryRow("select best_pct from recommendations where game_id = '42' and player_count = '4'").Scan(&bestPct)
	require.NoError(t, err)
	require.Equal(t, 75.0, bestPct)
}

func TestWrite(t *testing.T) {
	games, recs := fixture(t)
	dir := t.TempDir()

	for _, format := range Formats {
		path := ResolveFilename(filepath.Join(dir, "PlayerCountDataList"), format)
		err := Write(context.Background(), format, path, games, recs)
		require.NoError(t, err, format)

		info, err := os.Stat(path)
		require.NoError(t, err, format)
		require.Greater(t, info.Size(), int64(0), format)
	}

	err := Write(context.Background(), Format("xml"), filepath.Join(dir, "out.xml"), games, recs)
	require.Error(t, err)
}

func TestResolveFilename(t *testing.T) {
	cases := []struct {
		base   string
		format Format
		expect string
	}{
		{base: "PlayerCountDataList", format: FormatCSV, expect: "PlayerCountDataList.csv"},
		{base: "PlayerCountDataList.csv", format: FormatCSV, expect: "PlayerCountDataList.csv"},
		{base: "out.csv", format: FormatJSON, expect: "out.csv.json"},
		{base: "data/out", format: FormatSQLite, expect: "data/out.db"},
		{base: "out.db", format: FormatSQLite, expect: "out.db"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, ResolveFilename(test.base, test.format))
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	require.Error(t, err)
}

func TestSummarizeCSV(t *testing.T) {
	games, recs := fixture(t)

	var buff bytes.Buffer
	err := WriteCSV(&buff, games, recs)
	require.NoError(t, err)

	summary, err := SummarizeCSV(&buff)
	require.NoError(t, err)
	require.Equal(t, Summary{
		Rows:        4,
		Games:       3,
		Owned:       1,
		BaseGames:   2,
		Expansions:  1,
		Unranked:    1,
		MissingData: 1,
	}, summary)
}

func TestSummarizeCSVRejectsForeignFiles(t *testing.T) {
	_, err := SummarizeCSV(strings.NewReader("a,b,c\n1,2,3\n"))
	require.Error(t, err)

	_, err = SummarizeCSV(strings.NewReader(""))
	require.Error(t, err)
}
