package bgg

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"bggstats/internal/boardgame"
	"bggstats/internal/components/telemetry"
	"bggstats/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_session_fetch_page = "session.fetch-page"
	report_crawler_next       = "crawler.next"
	report_crawler_fetched    = "crawler.fetched"
)

// minimum number of ratings for a game to be listed
const catalogMinVoters = 50

var gameHrefRegex = regexp.MustCompile(`/boardgame(?:expansion)?/(\d+)`)

func catalogQuery() url.Values {
	return url.Values{
		"sort":                  {"avgrating"},
		"sortdir":               {"desc"},
		"advsearch":             {"1"},
		"q":                     {""},
		"range[numvoters][min]": {strconv.Itoa(catalogMinVoters)},
		"B1":                    {"Submit"},
	}
}

// FetchPage fetches one page of the catalog listing, sorted by average rating
// descending. A page without a results table returns ErrParse.
func (s *Session) FetchPage(ctx context.Context, page int) ([]boardgame.Game, error) {
	ctx, span := tracer.Start(ctx, "session:FetchPage")
	defer span.End()

	target := strconv.Itoa(page)
	endpoint := s.endpoint(s.catalogUrl, fmt.Sprintf("/search/boardgame/page/%d", page), catalogQuery())

	var body []byte
	err := s.opts.CatalogRetry.Do(ctx, s.sleeper, s.retryNotifier(report_session_fetch_page, target), func() error {
		res, err := s.http.R().
			SetContext(ctx).
			Get(endpoint)
		err = classifyResponse(ctx, res, err)
		if err != nil {
			return err
		}
		body = res.Body()
		return s.courtesy(ctx)
	})
	if err != nil {
		s.tel.ReportBroken(report_session_fetch_page, err, target)
		return nil, wrapError("fetch-page", target, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.tel.ReportBroken(report_session_fetch_page, fmt.Errorf("parse: %w", err), target)
		return nil, wrapError("fetch-page", target, fmt.Errorf("%w: %w", ErrParse, err))
	}

	games, err := parseCatalogPage(ctx, doc, s.tel)
	if err != nil {
		s.tel.ReportWarning(report_session_fetch_page, err, target)
		return nil, wrapError("fetch-page", target, err)
	}
	return games, nil
}

// parseCatalogPage reads the stubs out of the results table, rows that cannot be
// parsed are reported and skipped.
func parseCatalogPage(ctx context.Context, doc *goquery.Document, tel telemetry.API) ([]boardgame.Game, error) {
	table := doc.Find("table.collection_table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no collection table", ErrParse)
	}

	var games []boardgame.Game
	table.Find(`tr[id^="row_"]`).Each(func(_ int, row *goquery.Selection) {
		game, err := parseCatalogRow(ctx, row)
		if err != nil {
			tel.ReportWarning(report_session_fetch_page, err, row.AttrOr("id", ""))
			return
		}
		games = append(games, game)
	})
	return games, nil
}

func parseCatalogRow(ctx context.Context, row *goquery.Selection) (boardgame.Game, error) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < 6 {
		return boardgame.Game{}, fmt.Errorf("expected at least 6 cells, got %d", cells.Length())
	}

	anchors := htmlutil.GetAnchors(ctx, cells.Eq(2).Find("a"))
	if len(anchors) == 0 {
		return boardgame.Game{}, fmt.Errorf("no title anchor")
	}
	title := anchors[0]

	groups := gameHrefRegex.FindStringSubmatch(title.Href)
	if len(groups) < 2 {
		return boardgame.Game{}, fmt.Errorf("no game id in href %q", title.Href)
	}

	gameType := boardgame.BaseGame
	if strings.Contains(title.Href, "boardgameexpansion") {
		gameType = boardgame.Expansion
	}

	rating, err := strconv.ParseFloat(cellNumber(cells.Eq(4)), 64)
	if err != nil {
		return boardgame.Game{}, fmt.Errorf("parse average rating: %w", err)
	}
	voters, err := strconv.Atoi(cellNumber(cells.Eq(5)))
	if err != nil {
		return boardgame.Game{}, fmt.Errorf("parse number of voters: %w", err)
	}

	return boardgame.Game{
		ID:            groups[1],
		Title:         title.Name,
		Type:          gameType,
		AverageRating: rating,
		NumVoters:     voters,
	}, nil
}

func cellNumber(cell *goquery.Selection) string {
	return strings.ReplaceAll(htmlutil.CleanText(cell.Text()), ",", "")
}

// PageFetcher fetches one page of the catalog.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]boardgame.Game, error)
}

// Crawler walks the catalog a page at a time until it has produced `target` games.
// It is not restartable, once Next reports false it stays finished.
type Crawler struct {
	fetcher       PageFetcher
	tel           telemetry.API
	target        int
	maxEmptyPages int

	count       int
	nextPage    int
	emptyStreak int
	done        bool
}

// NewCrawler starts a crawl at page 1. maxEmptyPages <= 0 never gives up on
// empty pages.
func NewCrawler(fetcher PageFetcher, target, maxEmptyPages int, tel telemetry.API) *Crawler {
	return &Crawler{
		fetcher:       fetcher,
		tel:           telemetry.NewScopedAPI("crawler", tel),
		target:        target,
		maxEmptyPages: maxEmptyPages,
		nextPage:      1,
		done:          target <= 0,
	}
}

// Count is the number of games produced so far.
func (c *Crawler) Count() int {
	return c.count
}

// Next fetches the next page and returns its games, trimmed so the running count
// never goes past the target. A page that fails to fetch yields no games and the
// crawl moves on, only a cancelled context is returned as an error.
func (c *Crawler) Next(ctx context.Context) ([]boardgame.Game, bool, error) {
	if c.done {
		return nil, false, nil
	}

	page := c.nextPage
	c.nextPage++

	games, err := c.fetcher.FetchPage(ctx, page)
	if ctx.Err() != nil {
		c.done = true
		return nil, false, ctx.Err()
	}
	if err != nil {
		c.tel.ReportWarning(report_crawler_next, fmt.Errorf("skipping page: %w", err), page)
		games = nil
	}

	if len(games) == 0 {
		c.emptyStreak++
		if c.maxEmptyPages > 0 && c.emptyStreak >= c.maxEmptyPages {
			c.tel.ReportWarning(report_crawler_next, fmt.Errorf("giving up after %d empty pages", c.emptyStreak), page, c.count)
			c.done = true
		}
		return nil, true, nil
	}
	c.emptyStreak = 0

	remaining := c.target - c.count
	if len(games) > remaining {
		games = games[:remaining]
	}
	c.count += len(games)
	if c.count >= c.target {
		c.done = true
	}

	c.tel.ReportCount(report_crawler_fetched, int64(c.count))
	return games, true, nil
}

// Collect drains the crawler, returning games in the order they were encountered.
func (c *Crawler) Collect(ctx context.Context) ([]boardgame.Game, error) {
	var out []boardgame.Game
	for {
		games, ok, err := c.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, games...)
	}
}

// Crawl collects the first `target` games of the catalog.
func (s *Session) Crawl(ctx context.Context, target int) ([]boardgame.Game, error) {
	ctx, span := tracer.Start(ctx, "session:Crawl")
	defer span.End()

	return NewCrawler(s, target, s.opts.MaxEmptyPages, s.tel).Collect(ctx)
}
