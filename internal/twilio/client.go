package twilio

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

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

const (
	apiVersion = "2010-04-01"
	// maxPageSize is the largest page the provider serves.
	maxPageSize = 1000
	// maxPages bounds an unlimited listing so a runaway cursor cannot pin a request.
	maxPages = 200
)

var (
	// ErrServer marks 5xx and 429 answers. They are retried and count
	// against the circuit breaker.
	ErrServer = errors.New("twilio: provider server error")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("twilio: provider unavailable")
)

// APIError is a non-2xx provider answer.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("twilio: HTTP %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// Unwrap lets callers match retryable failures with errors.Is(err, ErrServer).
func (e *APIError) Unwrap() error {
	if e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests {
		return ErrServer
	}
	return nil
}

var providerRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "callrouter_provider_requests_total",
		Help: "Provider REST requests by outcome (ok, client_error, server_error, transport_error, rejected).",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(providerRequests)
}

// Client talks to the provider REST API. Each HTTP attempt is retried with
// exponential backoff and the whole retried call runs inside a circuit
// breaker. A Client is safe for concurrent use and is meant to be built once
// per process.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	mediaBase  string
	http       *http.Client

	attempts   uint
	retryDelay time.Duration
	maxDelay   time.Duration

	breaker *gobreaker.CircuitBreaker[[]byte]
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL points the client at another API host (tests, regional edges).
// Media URLs keep using the provider host unless WithMediaBaseURL is set.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithMediaBaseURL sets the host used to build recording media URLs.
func WithMediaBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.mediaBase = u
		}
	}
}

// WithTimeout bounds every single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry configures the attempt count and backoff window.
func WithRetry(attempts uint, delay, maxDelay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay > 0 {
			c.retryDelay = delay
		}
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open before probing again.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		c.breaker = newBreaker(failures, openFor)
	}
}

// NewClient builds a client for one provider account.
func NewClient(accountSID, authToken string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    DefaultBaseURL,
		mediaBase:  DefaultBaseURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		attempts:   3,
		retryDelay: 200 * time.Millisecond,
		maxDelay:   2 * time.Second,
		breaker:    newBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(failures uint32, openFor time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "twilio",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client errors and caller cancellations say nothing about provider health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !errors.Is(apiErr, ErrServer)
			}
			return false
		},
	})
}

// BreakerState reports the breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ListRecordings returns the account's recordings matching f.
//
// With f.Limit > 0 a single page of at most Limit items is fetched at
// f.Page. With f.Limit == 0 every page is followed until the provider stops
// returning a next page, which is how callers learn the total count.
func (c *Client) ListRecordings(ctx context.Context, f RecordingFilter) ([]Recording, error) {
	q := url.Values{}
	if f.DateCreatedAfter != "" {
		q.Set("DateCreated>", f.DateCreatedAfter)
	}
	if f.DateCreatedBefore != "" {
		q.Set("DateCreated<", f.DateCreatedBefore)
	}

	if f.Limit > 0 {
		size := min(f.Limit, maxPageSize)
		q.Set("PageSize", strconv.Itoa(size))
		q.Set("Page", strconv.Itoa(max(f.Page, 0)))
		page, err := c.fetchPage(ctx, c.recordingsPath()+"?"+q.Encode())
		if err != nil {
			return nil, err
		}
		return c.convert(page.Recordings, size), nil
	}

	q.Set("PageSize", strconv.Itoa(maxPageSize))
	next := c.recordingsPath() + "?" + q.Encode()
	var out []Recording
	for i := 0; next != "" && i < maxPages; i++ {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		out = append(out, c.convert(page.Recordings, 0)...)
		next = ""
		if page.NextPageURI != nil {
			next = *page.NextPageURI
		}
	}
	return out, nil
}

func (c *Client) recordingsPath() string {
	return fmt.Sprintf("/%s/Accounts/%s/Recordings.json", apiVersion, url.PathEscape(c.accountSID))
}

func (c *Client) convert(in []recordingJSON, limit int) []Recording {
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	out := make([]Recording, 0, len(in))
	for _, r := range in {
		out = append(out, r.toRecording(c.mediaBase))
	}
	return out
}

func (c *Client) fetchPage(ctx context.Context, pathAndQuery string) (*recordingsPage, error) {
	body, err := c.getWithRetry(ctx, c.baseURL+pathAndQuery)
	if err != nil {
		return nil, err
	}
	var page recordingsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("twilio: decode recordings: %w", err)
	}
	return &page, nil
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var body []byte
		err := retry.Do(
			func() error {
				var err error
				body, err = c.get(ctx, rawURL)
				return err
			},
			retry.Context(ctx),
			retry.Attempts(c.attempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(c.retryDelay),
			retry.MaxDelay(c.maxDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(retryable),
		)
		return body, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		providerRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, err
}

// retryable keeps retrying transport failures and provider 5xx/429, but not
// client errors or a caller that gave up.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return errors.Is(apiErr, ErrServer)
	}
	return true
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		providerRequests.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		providerRequests.WithLabelValues("transport_error").Inc()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		apiErr.StatusCode = resp.StatusCode
		if errors.Is(apiErr, ErrServer) {
			providerRequests.WithLabelValues("server_error").Inc()
		} else {
			providerRequests.WithLabelValues("client_error").Inc()
		}
		return nil, apiErr
	}

	providerRequests.WithLabelValues("ok").Inc()
	return body, nil
}
