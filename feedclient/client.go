// Package feedclient fetches and parses remote RSS, Atom and JSON feeds
package feedclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsdeck/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	feedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdeck_feed_http_requests_total",
		Help: "HTTP requests made to feed sources, by status class",
	}, []string{"status"})

	feedRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdeck_feed_http_retries_total",
		Help: "Retried feed requests after a transient transport error",
	})
)

const (
	DefaultUserAgent     = "newsdeck/1.0 (+https://github.com/newsdeck)"
	DefaultSummaryLength = 150
	DefaultMaxBodySize   = 10 * 1024 * 1024 // 10MB
)

// ErrFeedTooLarge is wrapped in the FetchError for bodies over MaxBodySize
var ErrFeedTooLarge = errors.New("feed too large")

// Config holds the HTTP client settings
type Config struct {
	UserAgent string
	// RequestsPerSecond limits outbound requests across all sources. Zero
	// disables pacing.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries is the number of extra attempts after a transient failure
	MaxRetries    uint64
	SummaryLength int
	// MaxBodySize caps the response body in bytes, DefaultMaxBodySize when zero
	MaxBodySize int64
	HTTPClient  *http.Client
}

// HTTPClient fetches feeds over HTTP and converts them to raw items
type HTTPClient struct {
	config  Config
	client  *http.Client
	parser  *gofeed.Parser
	limiter *rate.Limiter
}

func New(config Config) *HTTPClient {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.SummaryLength <= 0 {
		config.SummaryLength = DefaultSummaryLength
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	client := config.HTTPClient
	if client == nil {
		// Per-request deadlines come from the caller's context
		client = &http.Client{}
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}

	return &HTTPClient{
		config:  config,
		client:  client,
		parser:  gofeed.NewParser(),
		limiter: limiter,
	}
}

// Fetch downloads and parses the feed at feedUrl. The context bounds the
// whole call, including waiting for the rate limiter and any retries.
// Errors are always *models.FetchError.
func (c *HTTPClient) Fetch(ctx context.Context, feedUrl string) (models.FeedDocument, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline would pass before a token is free
			return models.FeedDocument{}, &models.FetchError{Kind: models.TimeoutErrorKind, Url: feedUrl, Err: err}
		}
	}

	body, err := c.download(ctx, feedUrl)
	if err != nil {
		return models.FeedDocument{}, err
	}

	feed, err := c.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return models.FeedDocument{}, &models.FetchError{Kind: models.ParseErrorKind, Url: feedUrl, Err: err}
	}

	doc := models.FeedDocument{
		FeedTitle: feed.Title,
		Items:     make([]models.RawItem, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		doc.Items = append(doc.Items, convertItem(item, c.config.SummaryLength))
	}

	return doc, nil
}

func (c *HTTPClient) download(ctx context.Context, feedUrl string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.Multiplier = 1.5
	b.MaxElapsedTime = 0 // Bounded by the context instead

	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		if attempt > 1 {
			feedRetries.Inc()
			log.WithFields(log.Fields{
				"url":     feedUrl,
				"attempt": attempt,
			}).Debug("Retrying feed request")
		}

		data, err := c.get(ctx, feedUrl)
		if err != nil {
			return err
		}
		body = data
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.config.MaxRetries), ctx))
	if err == nil {
		return body, nil
	}

	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) {
		if ctx.Err() != nil && fetchErr.Kind == models.TransportErrorKind {
			return nil, c.contextError(ctx, feedUrl, err)
		}
		return nil, fetchErr
	}

	return nil, c.contextError(ctx, feedUrl, err)
}

// get performs one request. Transient failures are returned as plain
// FetchErrors so that backoff retries them, everything else is permanent.
func (c *HTTPClient) get(ctx context.Context, feedUrl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedUrl, nil)
	if err != nil {
		return nil, backoff.Permanent(&models.FetchError{Kind: models.TransportErrorKind, Url: feedUrl, Err: err})
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		feedRequests.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, backoff.Permanent(c.contextError(ctx, feedUrl, err))
		}
		return nil, &models.FetchError{Kind: models.KindOf(err), Url: feedUrl, Err: err}
	}
	defer resp.Body.Close()

	feedRequests.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &models.FetchError{
			Kind: models.TransportErrorKind,
			Url:  feedUrl,
			Err:  fmt.Errorf("unexpected status: %s", resp.Status),
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	// One extra byte tells a body at the limit from one over it
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(c.contextError(ctx, feedUrl, err))
		}
		return nil, &models.FetchError{Kind: models.TransportErrorKind, Url: feedUrl, Err: err}
	}
	if int64(len(body)) > c.config.MaxBodySize {
		return nil, backoff.Permanent(&models.FetchError{
			Kind: models.TransportErrorKind,
			Url:  feedUrl,
			Err:  fmt.Errorf("%w: more than %d bytes", ErrFeedTooLarge, c.config.MaxBodySize),
		})
	}

	return body, nil
}

func (c *HTTPClient) contextError(ctx context.Context, feedUrl string, err error) *models.FetchError {
	kind := models.TransportErrorKind
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || models.KindOf(err) == models.TimeoutErrorKind {
		kind = models.TimeoutErrorKind
	}
	return &models.FetchError{Kind: kind, Url: feedUrl, Err: err}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
