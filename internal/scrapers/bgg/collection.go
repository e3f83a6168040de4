package bgg

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"

	"bggstats/internal/boardgame"
)

const (
	report_session_fetch_owned = "session.fetch-owned"
)

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type collectionResponse struct {
	XMLName xml.Name         `xml:"items"`
	Items   []collectionItem `xml:"item"`
}

type collectionItem struct {
	ObjectID string `xml:"objectid,attr"`
	Subtype  string `xml:"subtype,attr"`
	Name     string `xml:"name"`
	Stats    struct {
		Rating struct {
			UsersRated valueAttr `xml:"usersrated"`
			Average    valueAttr `xml:"average"`
		} `xml:"rating"`
	} `xml:"stats"`
}

type collectionSubtype struct {
	query    url.Values
	itemType boardgame.Type
}

// the boardgame subtype also matches expansions unless they are excluded
var collectionSubtypes = []collectionSubtype{
	{
		query: url.Values{
			"subtype":        {"boardgame"},
			"excludesubtype": {"boardgameexpansion"},
		},
		itemType: boardgame.BaseGame,
	},
	{
		query: url.Values{
			"subtype": {"boardgameexpansion"},
		},
		itemType: boardgame.Expansion,
	},
}

// FetchOwned fetches every base game and expansion `username` owns. Ownership is
// required for the merge, so running out of retries here is an error the caller
// should treat as fatal.
func (s *Session) FetchOwned(ctx context.Context, username string) ([]boardgame.Game, error) {
	ctx, span := tracer.Start(ctx, "session:FetchOwned")
	defer span.End()

	if username == "" {
		return nil, wrapError("fetch-owned", username, fmt.Errorf("empty username"))
	}

	var owned []boardgame.Game
	for _, subtype := range collectionSubtypes {
		games, err := s.fetchCollection(ctx, username, subtype)
		if err != nil {
			return nil, err
		}
		owned = append(owned, games...)
	}
	return owned, nil
}

func (s *Session) fetchCollection(ctx context.Context, username string, subtype collectionSubtype) ([]boardgame.Game, error) {
	query := url.Values{
		"username": {username},
		"own":      {"1"},
		"stats":    {"1"},
	}
	for k, v := range subtype.query {
		query[k] = v
	}
	endpoint := s.endpoint(s.apiUrl, "/collection", query)
	target := fmt.Sprintf("%s/%s", username, subtype.itemType)

	var body []byte
	err := s.opts.OwnershipRetry.Do(ctx, s.sleeper, s.retryNotifier(report_session_fetch_owned, target), func() error {
		res, err := s.http.R().
			SetContext(ctx).
			Get(endpoint)
		// the collection is queued server side with a 202 until it is ready,
		// so every answer that is not a 200 counts as a failed attempt
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
		s.tel.ReportBroken(report_session_fetch_owned, err, target)
		return nil, wrapError("fetch-owned", target, err)
	}

	games, err := parseCollection(body, subtype.itemType)
	if err != nil {
		s.tel.ReportBroken(report_session_fetch_owned, err, target)
		return nil, wrapError("fetch-owned", target, err)
	}
	return games, nil
}

func parseCollection(body []byte, itemType boardgame.Type) ([]boardgame.Game, error) {
	var res collectionResponse
	err := xml.Unmarshal(body, &res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	games := make([]boardgame.Game, 0, len(res.Items))
	for _, item := range res.Items {
		if !boardgame.ValidID(item.ObjectID) {
			return nil, fmt.Errorf("%w: invalid object id %q", ErrParse, item.ObjectID)
		}
		rating, err := strconv.ParseFloat(item.Stats.Rating.Average.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: average rating of %s: %w", ErrParse, item.ObjectID, err)
		}
		voters, err := strconv.Atoi(item.Stats.Rating.UsersRated.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: users rated of %s: %w", ErrParse, item.ObjectID, err)
		}

		games = append(games, boardgame.Game{
			ID:            item.ObjectID,
			Title:         item.Name,
			Type:          itemType,
			AverageRating: rating,
			NumVoters:     voters,
			Owned:         true,
		})
	}
	return games, nil
}
