package bgg

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"bggstats/internal/boardgame"
	"bggstats/internal/components/assert"

	"golang.org/x/sync/errgroup"
)

const (
	report_session_fetch_stats = "session.fetch-stats"
	report_session_stats_item  = "session.stats-item"
	report_stats_updated       = "stats.updated"
)

const (
	overallRankName = "boardgame"
	notRanked       = "Not Ranked"
)

type thingResponse struct {
	XMLName xml.Name    `xml:"items"`
	Items   []thingItem `xml:"item"`
}

type thingItem struct {
	ID            string    `xml:"id,attr"`
	YearPublished valueAttr `xml:"yearpublished"`
	Polls         []poll    `xml:"poll"`
	Ratings       struct {
		Ranks         []rankElement `xml:"ranks>rank"`
		NumWeights    valueAttr     `xml:"numweights"`
		AverageWeight valueAttr     `xml:"averageweight"`
	} `xml:"statistics>ratings"`
}

type rankElement struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// StatsResult summarizes a statistics run.
type StatsResult struct {
	Recommendations boardgame.Recommendations
	Batches         int
	FailedBatches   int
	// Updated counts games whose statistics were applied.
	Updated int
}

type batchResult struct {
	stats map[string]boardgame.Stats
	recs  map[string][]boardgame.Recommendation
	// ids in response order
	order []string
}

// Batches splits ids into consecutive chunks of at most `size`.
func Batches(ids []string, size int) [][]string {
	assert.Positive(size)

	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// FetchStats enriches every game with year, weight and rank and collects the
// suggested player count poll, `batchSize` games per request. A batch that runs
// out of retries is skipped and its games keep whatever values they had. The only
// error returned is the context's.
func (s *Session) FetchStats(ctx context.Context, games *boardgame.Games, batchSize int) (StatsResult, error) {
	ctx, span := tracer.Start(ctx, "session:FetchStats")
	defer span.End()

	if batchSize <= 0 {
		return StatsResult{}, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	batches := Batches(games.IDs(), batchSize)
	results := make([]*batchResult, len(batches))

	var fetched atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Workers)
	for i, batch := range batches {
		group.Go(func() error {
			res, err := s.fetchBatch(groupCtx, batch)
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			if err != nil {
				return nil
			}
			results[i] = res
			s.tel.ReportCount(report_stats_updated, fetched.Add(int64(len(res.stats))))
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return StatsResult{}, err
	}

	out := StatsResult{
		Recommendations: boardgame.Recommendations{},
		Batches:         len(batches),
	}
	for _, res := range results {
		if res == nil {
			out.FailedBatches++
			continue
		}
		for _, id := range res.order {
			game, ok := games.Get(id)
			if !ok {
				continue
			}
			game.ApplyStats(res.stats[id])
			out.Recommendations[id] = res.recs[id]
			out.Updated++
		}
	}
	return out, nil
}

func (s *Session) fetchBatch(ctx context.Context, ids []string) (*batchResult, error) {
	target := fmt.Sprintf("%s..%s (%d)", ids[0], ids[len(ids)-1], len(ids))
	endpoint := s.endpoint(s.apiUrl, "/thing", map[string][]string{
		"id":    {strings.Join(ids, ",")},
		"stats": {"1"},
	})

	var body []byte
	err := s.opts.StatsRetry.Do(ctx, s.sleeper, s.retryNotifier(report_session_fetch_stats, target), func() error {
		res, err := s.http.R().
			SetContext(ctx).
			Get(endpoint)
		err = classifyResponse(ctx, res, err)
		if err == nil {
			body = res.Body()
		}
		if sleepErr := s.courtesy(ctx); sleepErr != nil {
			return sleepErr
		}
		return err
	})
	if err != nil {
		s.tel.ReportBroken(report_session_fetch_stats, err, target)
		return nil, wrapError("fetch-stats", target, err)
	}

	res, err := s.parseThings(body, ids)
	if err != nil {
		s.tel.ReportBroken(report_session_fetch_stats, err, target)
		return nil, wrapError("fetch-stats", target, err)
	}
	return res, nil
}

func (s *Session) parseThings(body []byte, requested []string) (*batchResult, error) {
	var res thingResponse
	err := xml.Unmarshal(body, &res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	wanted := make(map[string]bool, len(requested))
	for _, id := range requested {
		wanted[id] = true
	}

	out := &batchResult{
		stats: map[string]boardgame.Stats{},
		recs:  map[string][]boardgame.Recommendation{},
	}
	for _, item := range res.Items {
		if !wanted[item.ID] {
			s.tel.ReportWarning(report_session_stats_item, fmt.Errorf("unrequested item in response"), item.ID)
			continue
		}
		if _, seen := out.stats[item.ID]; seen {
			continue
		}
		stats, err := statsFromItem(item)
		if err != nil {
			s.tel.ReportWarning(report_session_stats_item, err, item.ID)
			continue
		}
		out.stats[item.ID] = stats
		out.recs[item.ID] = recommendationsFromPolls(item.Polls)
		out.order = append(out.order, item.ID)
	}

	if missing := len(requested) - len(out.order); missing > 0 {
		s.tel.ReportWarning(report_session_fetch_stats, fmt.Errorf("%d requested items missing from response", missing))
	}
	return out, nil
}

func statsFromItem(item thingItem) (boardgame.Stats, error) {
	year, err := strconv.Atoi(item.YearPublished.Value)
	if err != nil {
		return boardgame.Stats{}, fmt.Errorf("parse year published: %w", err)
	}
	weight, err := strconv.ParseFloat(item.Ratings.AverageWeight.Value, 64)
	if err != nil {
		return boardgame.Stats{}, fmt.Errorf("parse average weight: %w", err)
	}
	weightVotes, err := strconv.Atoi(item.Ratings.NumWeights.Value)
	if err != nil {
		return boardgame.Stats{}, fmt.Errorf("parse number of weights: %w", err)
	}

	return boardgame.Stats{
		Year:        year,
		Weight:      boardgame.Round(weight, 2),
		WeightVotes: weightVotes,
		Rank:        overallRank(item.Ratings.Ranks),
	}, nil
}

// overallRank falls back to Unranked when the overall rank is missing, marked
// "Not Ranked" or otherwise not a number.
func overallRank(ranks []rankElement) boardgame.Rank {
	for _, r := range ranks {
		if r.Name != overallRankName {
			continue
		}
		if r.Value == notRanked {
			return boardgame.Unranked
		}
		n, err := strconv.Atoi(r.Value)
		if err != nil || n <= 0 {
			return boardgame.Unranked
		}
		return boardgame.Rank(n)
	}
	return boardgame.Unranked
}
