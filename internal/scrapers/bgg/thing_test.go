package bgg

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"bggstats/internal/boardgame"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseThings(t *testing.T) {
	s := newTestSession(t, nil)

	res, err := s.parseThings(thingXml, []string{"42", "43", "44", "45"})
	require.NoError(t, err)
	require.Equal(t, []string{"42", "43", "44"}, res.order)

	require.Equal(t, boardgame.Stats{Year: 1997, Weight: 3.46, WeightVotes: 1201, Rank: 120}, res.stats["42"])
	require.Equal(t, boardgame.Stats{Year: 2001, Weight: 0, WeightVotes: 0, Rank: boardgame.Unranked}, res.stats["43"])
	require.Equal(t, boardgame.Stats{Year: 0, Weight: 1.67, WeightVotes: 3, Rank: boardgame.Unranked}, res.stats["44"])

	expect := []boardgame.Recommendation{
		{PlayerCount: "1"},
		{
			PlayerCount:      "4",
			BestVotes:        3,
			RecommendedVotes: 1,
			VoteCount:        4,
			BestPct:          75,
			RecPct:           25,
		},
		{
			PlayerCount:      "3",
			BestVotes:        1,
			RecommendedVotes: 1,
			VoteCount:        2,
			BestPct:          50,
			RecPct:           50,
		},
	}
	if diff := cmp.Diff(expect, res.recs["42"]); diff != "" {
		t.Fatal("unexpected recommendations (-want +got)\n", diff)
	}
	require.Equal(t, []boardgame.Recommendation{{PlayerCount: "2"}}, res.recs["43"])
	require.Empty(t, res.recs["44"])

	require.Len(t, s.tel.Reports("warning", report_session_fetch_stats), 1, "missing item 45 is reported")
}

func TestParseThingsIgnoresUnrequested(t *testing.T) {
	s := newTestSession(t, nil)

	res, err := s.parseThings(thingXml, []string{"42"})
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, res.order)
	require.Len(t, s.tel.Reports("warning", report_session_stats_item), 2)
}

func TestParseThingsInvalid(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.parseThings([]byte(`<error>Rate limit exceeded.</error>`), []string{"42"})
	require.ErrorIs(t, err, ErrParse)
}

func TestOverallRank(t *testing.T) {
	cases := []struct {
		name   string
		ranks  []rankElement
		expect boardgame.Rank
	}{
		{
			name:   "ranked",
			ranks:  []rankElement{{Name: "strategygames", Value: "3"}, {Name: "boardgame", Value: "17"}},
			expect: 17,
		},
		{
			name:   "not ranked",
			ranks:  []rankElement{{Name: "boardgame", Value: "Not Ranked"}},
			expect: boardgame.Unranked,
		},
		{
			name:   "only family ranks",
			ranks:  []rankElement{{Name: "familygames", Value: "4"}},
			expect: boardgame.Unranked,
		},
		{
			name:   "garbage",
			ranks:  []rankElement{{Name: "boardgame", Value: "n/a"}},
			expect: boardgame.Unranked,
		},
		{
			name:   "missing",
			expect: boardgame.Unranked,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, overallRank(test.ranks))
		})
	}
}

func TestRecommendationsFromPolls(t *testing.T) {
	polls := []poll{
		{Name: "suggested_playerage", Results: []pollResults{{Results: []pollResult{{Value: "12", NumVotes: 5}}}}},
		{
			Name: "suggested_numplayers",
			Results: []pollResults{
				{NumPlayers: "2", Results: []pollResult{{Value: "Best", NumVotes: 1}}},
				{NumPlayers: "10+", Results: []pollResult{{Value: "Best", NumVotes: 9}}},
				{NumPlayers: "2", Results: []pollResult{{Value: "Not Recommended", NumVotes: 1}}},
			},
		},
	}

	recs := recommendationsFromPolls(polls)
	require.Len(t, recs, 1)
	require.Equal(t, "2", recs[0].PlayerCount)
	require.Equal(t, 2, recs[0].VoteCount, "votes of a repeated bucket are added together")
	require.Equal(t, 50.0, recs[0].BestPct)
	require.Equal(t, 50.0, recs[0].NotRecPct)
}

func TestBatches(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5"}
	require.Equal(t, [][]string{{"1", "2"}, {"3", "4"}, {"5"}}, Batches(ids, 2))
	require.Equal(t, [][]string{{"1", "2", "3", "4", "5"}}, Batches(ids, 100))
	require.Empty(t, Batches(nil, 100))
}

// thingBody renders a response with one statistics item for every id in the
// request, item n published in year 2000+n and ranked n.
func thingBody(ids []string) []byte {
	var buff strings.Builder
	buff.WriteString(`<items>`)
	for _, id := range ids {
		fmt.Fprintf(
			&buff,
			`<item type="boardgame" id="%[1]s"><yearpublished value="20%[1]s"/>`+
				`<poll name="suggested_numplayers"><results numplayers="2"><result value="Best" numvotes="%[1]s"/></results></poll>`+
				`<statistics><ratings><ranks><rank name="boardgame" value="%[1]s"/></ranks>`+
				`<numweights value="1"/><averageweight value="2.5"/></ratings></statistics></item>`,
			id,
		)
	}
	buff.WriteString(`</items>`)
	return []byte(buff.String())
}

func statsGames(n int) *boardgame.Games {
	games := boardgame.NewGames()
	for i := 1; i <= n; i++ {
		games.Add(boardgame.Game{ID: fmt.Sprintf("%02d", i), Title: fmt.Sprintf("Game %d", i)})
	}
	return games
}

func requestedIds(r *http.Request) []string {
	return strings.Split(r.URL.Query().Get("id"), ",")
}

func TestFetchStats(t *testing.T) {
	s := newTestSession(t, func(r *http.Request, _ int) (int, []byte) {
		return http.StatusOK, thingBody(requestedIds(r))
	})
	games := statsGames(5)

	res, err := s.FetchStats(context.Background(), games, 2)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batches)
	require.Equal(t, 0, res.FailedBatches)
	require.Equal(t, 5, res.Updated)

	var batches []string
	for _, r := range s.server.Requests() {
		require.Equal(t, "/xmlapi2/thing", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("stats"))
		batches = append(batches, r.URL.Query().Get("id"))
	}
	require.Equal(t, []string{"01,02", "03,04", "05"}, batches)

	for _, game := range games.All() {
		require.NotNil(t, game.Year, game.ID)
		require.Equal(t, 2000+mustAtoi(t, game.ID), *game.Year)
		require.Equal(t, 2.5, *game.Weight)
		require.Equal(t, boardgame.Rank(mustAtoi(t, game.ID)), *game.Rank)
		require.Len(t, res.Recommendations[game.ID], 1)
	}

	courtesy := DefaultCourtesyDelay
	require.Equal(t, []time.Duration{courtesy, courtesy, courtesy}, s.sleeper.Slept())

	count, ok := s.tel.LastCount(report_stats_updated)
	require.True(t, ok)
	require.Equal(t, int64(5), count)
}

// One batch fails every attempt, the rest of the run is unaffected.
func TestFetchStatsSkipsFailedBatch(t *testing.T) {
	s := newTestSession(t, func(r *http.Request, _ int) (int, []byte) {
		ids := requestedIds(r)
		if slices.Contains(ids, "03") {
			return http.StatusServiceUnavailable, nil
		}
		return http.StatusOK, thingBody(ids)
	})
	games := statsGames(5)

	res, err := s.FetchStats(context.Background(), games, 2)
	require.NoError(t, err)
	require.Equal(t, 1, res.FailedBatches)
	require.Equal(t, 3, res.Updated)
	require.Len(t, s.server.Requests(), 1+5+1)

	for _, id := range []string{"03", "04"} {
		game, _ := games.Get(id)
		require.Nil(t, game.Year, id)
		require.Nil(t, game.Weight, id)
		require.Nil(t, game.Rank, id)
		require.NotContains(t, res.Recommendations, id)
	}
	for _, id := range []string{"01", "02", "05"} {
		game, _ := games.Get(id)
		require.NotNil(t, game.Year, id)
	}

	require.Len(t, s.tel.Reports("broken", report_session_fetch_stats), 1)
}

func TestFetchStatsWorkers(t *testing.T) {
	run := func(workers int) (*boardgame.Games, StatsResult) {
		s := newTestSession(t, func(r *http.Request, _ int) (int, []byte) {
			return http.StatusOK, thingBody(requestedIds(r))
		}, func(opts *SessionOptions) {
			opts.Workers = workers
			opts.CourtesyDelay = 5 * time.Millisecond
		})
		games := statsGames(9)
		res, err := s.FetchStats(context.Background(), games, 2)
		require.NoError(t, err)
		require.Len(t, s.server.Requests(), 5)
		return games, res
	}

	sequential, sequentialRes := run(1)
	parallel, parallelRes := run(3)

	require.Equal(t, sequential.Snapshot(), parallel.Snapshot())
	require.Equal(t, sequentialRes, parallelRes)
	require.Equal(t, sequential.IDs(), parallel.IDs())
}

func TestFetchStatsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSession(t, func(r *http.Request, _ int) (int, []byte) {
		cancel()
		return http.StatusOK, thingBody(requestedIds(r))
	})

	_, err := s.FetchStats(ctx, statsGames(4), 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchStatsInvalidBatchSize(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.FetchStats(context.Background(), statsGames(1), 0)
	require.Error(t, err)
}

func mustAtoi(t testing.TB, s string) int {
	t.Helper()
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	require.NoError(t, err)
	return n
}
