package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// BPMOptions configures a [GetSongBPMService].
type BPMOptions struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration // per HTTP attempt
	RetryAttempts int           // retries after the first attempt on 429/5xx/network errors
	RetryWait     time.Duration // initial backoff; resty doubles it up to 8x
	Rate          float64       // requests per second; <= 0 means unlimited
	HTTPClient    *http.Client
	Logger        *log.Logger
}

// GetSongBPMService is the fallback tempo source, queried by artist and title.
type GetSongBPMService struct {
	client   *resty.Client
	apiKey   string
	limiter  *rate.Limiter
	logger   *log.Logger
	disabled atomic.Bool
}

// NewGetSongBPMService creates a new [GetSongBPMService].
func NewGetSongBPMService(opts BPMOptions) *GetSongBPMService {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.getsong.co"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}

	var c *resty.Client
	if opts.HTTPClient != nil {
		c = resty.NewWithClient(opts.HTTPClient)
	} else {
		c = resty.New()
	}
	c.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(max(opts.RetryAttempts, 0)).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait * 8).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}

	return &GetSongBPMService{
		client:  c,
		apiKey:  opts.APIKey,
		limiter: rate.NewLimiter(limit, 1),
		logger:  shared.WithLogger(opts.Logger, "provider", "getsongbpm"),
	}
}

// Disabled reports whether the service rejected our credentials and stopped issuing requests.
func (s *GetSongBPMService) Disabled() bool {
	return s.disabled.Load()
}

// LookupBPM implements [BPMProvider].
//
// Returns [shared.ErrTrackNotFound] when the service has no usable tempo for the track.
func (s *GetSongBPMService) LookupBPM(ctx context.Context, artist, title string) (float64, error) {
	if s.disabled.Load() {
		return 0, fmt.Errorf("%w: getsongbpm disabled for this session", shared.ErrProviderUnavailable)
	}
	if strings.TrimSpace(title) == "" {
		return 0, fmt.Errorf("%w: empty title", shared.ErrTrackNotFound)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: bpm rate limiter: %w", shared.ErrTransientFetch, err)
	}

	lookup := "song:" + title
	if artist != "" {
		lookup += " artist:" + artist
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key": s.apiKey,
			"type":    "both",
			"lookup":  lookup,
		}).
		Get("/search/")
	if err != nil {
		return 0, fmt.Errorf("%w: bpm lookup: %w", shared.ErrTransientFetch, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if s.disabled.CompareAndSwap(false, true) {
			s.logger.Warn("bpm service rejected api key, disabling for this session", "status", status)
		}
		return 0, fmt.Errorf("%w: getsongbpm status %d", shared.ErrProviderUnavailable, status)
	case status == http.StatusTooManyRequests || status >= 500:
		return 0, fmt.Errorf("%w: getsongbpm status %d", shared.ErrTransientFetch, status)
	case status != http.StatusOK:
		return 0, fmt.Errorf("%w: getsongbpm status %d", shared.ErrAPIRequest, status)
	}

	return parseTempo(resp.Body(), artist)
}

// parseTempo picks the first result whose artist matches (or the first result) and reads its tempo.
//
// The service answers with {"search": [...]} on a hit and {"search": {"error": "..."}} on a miss;
// tempo arrives as a string.
func parseTempo(body []byte, artist string) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%w: getsongbpm returned invalid json", shared.ErrAPIRequest)
	}

	results := gjson.GetBytes(body, "search")
	if !results.IsArray() || len(results.Array()) == 0 {
		msg := results.Get("error").String()
		return 0, fmt.Errorf("%w: getsongbpm: %s", shared.ErrTrackNotFound, msg)
	}

	items := results.Array()
	pick := items[0]
	if artist != "" {
		for _, it := range items {
			if strings.EqualFold(it.Get("artist.name").String(), artist) {
				pick = it
				break
			}
		}
	}

	tempo := pick.Get("tempo").Float()
	if tempo <= 0 {
		return 0, fmt.Errorf("%w: getsongbpm result has no tempo", shared.ErrTrackNotFound)
	}
	return tempo, nil
}
