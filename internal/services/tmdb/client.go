package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/amaumene/catalogarr/internal/config"
)

// ErrNotFound is returned when the catalog has no entry for a reference
var ErrNotFound = errors.New("tmdb: not found")

const (
	posterSize   = "w500"
	backdropSize = "w1280"
	stillSize    = "w300"
	maxRetries   = 3
)

// Client wraps the TMDB v3 HTTP API
type Client struct {
	baseURL      string
	imageBaseURL string
	apiKey       string
	language     string
	httpClient   *http.Client
	cache        *cache.Cache
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[[]byte]
	retryWait    time.Duration
	logger       zerolog.Logger
}

// NewClient creates a new TMDB client
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if cfg.TMDBAPIKey == "" {
		return nil, fmt.Errorf("tmdb API key is required")
	}
	if cfg.TMDBBaseURL == "" {
		return nil, fmt.Errorf("tmdb base URL is required")
	}

	timeout := cfg.TMDBTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ttl := cfg.TMDBCacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	perSecond := cfg.TMDBRateLimit
	if perSecond <= 0 {
		perSecond = 20
	}

	logger = logger.With().Str("component", "tmdb").Logger()

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code < 500 && se.code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:      strings.TrimRight(cfg.TMDBBaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.TMDBImageBaseURL, "/"),
		apiKey:       cfg.TMDBAPIKey,
		language:     cfg.TMDBLanguage,
		httpClient:   &http.Client{Timeout: timeout},
		cache:        cache.New(ttl, 2*ttl),
		limiter:      rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
		breaker:      breaker,
		retryWait:    500 * time.Millisecond,
		logger:       logger,
	}, nil
}

// statusError is a non-OK response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb API returned status %d: %s", e.code, e.body)
}

// get performs a cached, rate limited and retried GET and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	cacheKey := path + "?" + params.Encode()

	if cached, ok := c.cache.Get(cacheKey); ok {
		return json.Unmarshal(cached.([]byte), out)
	}

	params.Set("api_key", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		data, err := c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(ctx, fullURL)
		})
		if err != nil {
			var se *statusError
			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return backoff.Permanent(err)
			case errors.As(err, &se) && se.code == http.StatusNotFound:
				return backoff.Permanent(ErrNotFound)
			case errors.As(err, &se) && se.code != http.StatusTooManyRequests && se.code < 500:
				return backoff.Permanent(err)
			}
			return err
		}
		body = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Str("path", path).Dur("retry_in", wait).Msg("Retrying TMDB request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	c.cache.SetDefault(cacheKey, body)
	return nil
}

// fetch performs one HTTP round trip. Client errors other than 429 count as breaker
// successes so a run of unknown ids does not open it.
func (c *Client) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "catalogarr/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}
	return body, nil
}

func (c *Client) imageURL(size, path string) *string {
	if path == "" || c.imageBaseURL == "" {
		return nil
	}
	u := c.imageBaseURL + "/" + size + path
	return &u
}

// yearOf parses the year from a "YYYY-MM-DD" date
func yearOf(date string) *int {
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
