package bgg

import (
	"context"
	"math/rand/v2"
	"net/url"
	"time"

	"bggstats/internal/components/chrono"
	"bggstats/internal/components/telemetry"
	"bggstats/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("bggstats/scrapers/bgg")

const (
	DefaultCatalogURL    = "https://boardgamegeek.com"
	DefaultAPIURL        = "https://boardgamegeek.com/xmlapi2"
	DefaultCourtesyDelay = 1500 * time.Millisecond
	DefaultTimeout       = 30 * time.Second
	DefaultMaxEmptyPages = 10
)

// userAgents spans chrome, edge, firefox and safari.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.2420.65",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.2365.92",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.4; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:123.0) Gecko/20100101 Firefox/123.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// UserAgents returns the pool a session's user agent is picked from.
func UserAgents() []string {
	return append([]string(nil), userAgents...)
}

// SessionOptions configures a Session, zero values fall back to the defaults except
// for CourtesyDelay where zero means no delay.
type SessionOptions struct {
	CatalogURL string
	APIURL     string
	Timeout    time.Duration

	// CourtesyDelay is the pause after every outbound request, it is also the minimum
	// spacing between requests when statistics are fetched with more than one worker.
	CourtesyDelay time.Duration
	// Workers bounds how many statistics batches are in flight at once.
	Workers int
	// MaxEmptyPages ends a crawl after this many consecutive pages yielded nothing.
	MaxEmptyPages int

	CatalogRetry   RetryPolicy
	OwnershipRetry RetryPolicy
	StatsRetry     RetryPolicy

	Telemetry telemetry.API
	Sleeper   chrono.Sleeper
	// HttpDump receives every HTTP exchange when set.
	HttpDump restyutil.InstrumentOutput
}

// DefaultSessionOptions mirrors the pacing the catalog tolerates in practice.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		CatalogURL:     DefaultCatalogURL,
		APIURL:         DefaultAPIURL,
		Timeout:        DefaultTimeout,
		CourtesyDelay:  DefaultCourtesyDelay,
		Workers:        1,
		MaxEmptyPages:  DefaultMaxEmptyPages,
		CatalogRetry:   DefaultFetchRetryPolicy(),
		OwnershipRetry: DefaultOwnershipRetryPolicy(),
		StatsRetry:     DefaultFetchRetryPolicy(),
	}
}

// Session is the HTTP client shared by every fetcher of a run.
type Session struct {
	http      *resty.Client
	userAgent string

	catalogUrl *url.URL
	apiUrl     *url.URL

	opts    SessionOptions
	tel     telemetry.API
	sleeper chrono.Sleeper
}

// NewSession builds a session with a user agent picked at random from UserAgents.
func NewSession(opts SessionOptions) (*Session, error) {
	def := DefaultSessionOptions()
	if opts.CatalogURL == "" {
		opts.CatalogURL = def.CatalogURL
	}
	if opts.APIURL == "" {
		opts.APIURL = def.APIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxEmptyPages <= 0 {
		opts.MaxEmptyPages = def.MaxEmptyPages
	}
	opts.CatalogRetry = opts.CatalogRetry.orDefault(def.CatalogRetry)
	opts.OwnershipRetry = opts.OwnershipRetry.orDefault(def.OwnershipRetry)
	opts.StatsRetry = opts.StatsRetry.orDefault(def.StatsRetry)
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.SlogAPI{}
	}
	if opts.Sleeper == nil {
		opts.Sleeper = chrono.StandardSleeper{}
	}

	catalogUrl, err := url.Parse(opts.CatalogURL)
	if err != nil {
		return nil, err
	}
	apiUrl, err := url.Parse(opts.APIURL)
	if err != nil {
		return nil, err
	}

	tel := telemetry.NewScopedAPI("bgg_scraper", opts.Telemetry)

	userAgent := userAgents[rand.IntN(len(userAgents))]

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("User-Agent", userAgent)
	httpClient.SetTimeout(opts.Timeout)

	if opts.Workers > 1 && opts.CourtesyDelay > 0 {
		// max burst of 1 keeps concurrent workers at least CourtesyDelay apart
		rateLimiter := rate.NewLimiter(rate.Every(opts.CourtesyDelay), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.HttpDump)

	return &Session{
		http:       httpClient,
		userAgent:  userAgent,
		catalogUrl: catalogUrl,
		apiUrl:     apiUrl,
		opts:       opts,
		tel:        tel,
		sleeper:    opts.Sleeper,
	}, nil
}

// UserAgent is the user agent header sent with every request.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// courtesy waits the configured courtesy delay.
func (s *Session) courtesy(ctx context.Context) error {
	return s.sleeper.Sleep(ctx, s.opts.CourtesyDelay)
}

func (s *Session) endpoint(base *url.URL, path string, query url.Values) string {
	link := base.JoinPath(path)
	link.RawQuery = query.Encode()
	return link.String()
}

func (s *Session) retryNotifier(id, target string) RetryNotify {
	return func(attempt int, err error, wait time.Duration) {
		s.tel.ReportWarning(id, err, target, attempt, wait.String())
	}
}
