// Package fetch is the request executor for the JSON search endpoint: a
// resty client with a Chrome TLS fingerprint, browser-like headers, and a
// bounded retry budget. Responses come back classified: valid JSON, or a
// typed error saying exactly how the fetch went wrong.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/openadlib/adlib/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// snippetLen bounds how much of a non-JSON body is quoted in errors.
const snippetLen = 200

// Options configures a Client.
type Options struct {
	// Referer, when non-empty, is sent with every request. The endpoint
	// expects the public results page as referrer.
	Referer string

	// Headers are extra headers applied after the defaults, so callers can
	// override any of them.
	Headers map[string]string

	// UserAgent overrides the default Chrome user agent when non-empty.
	UserAgent string

	// RetryLimit is the number of retry attempts after the first try.
	RetryLimit int

	// Timeout is the per-request deadline.
	Timeout time.Duration

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Result is a successfully fetched and decoded endpoint response.
type Result struct {
	StatusCode int
	Body       []byte
	JSON       gjson.Result
}

// Client executes endpoint requests. Transport errors, HTTP 429 and 5xx are
// retried with exponential backoff up to the retry limit; 401/403 are
// surfaced immediately. Safe for concurrent use.
type Client struct {
	rc *resty.Client
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	ua := opts.UserAgent
	if ua == "" {
		ua = chromeUA
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryLimit).
		SetRetryWaitTime(opts.RetryWaitMin).
		SetRetryMaxWaitTime(opts.RetryWaitMax).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			if r.StatusCode() == http.StatusTooManyRequests {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})

	rc.GetClient().Transport = newTransport()

	rc.SetHeader("User-Agent", ua)
	rc.SetHeader("Accept", "application/json, text/javascript, */*; q=0.01")
	rc.SetHeader("Accept-Language", "en-US,en;q=0.9")
	if opts.Referer != "" {
		rc.SetHeader("Referer", opts.Referer)
	}
	for k, v := range opts.Headers {
		rc.SetHeader(k, v)
	}

	rc.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		slog.Debug("endpoint response",
			"status", res.StatusCode(),
			"attempt", res.Request.Attempt,
			"duration", res.Time(),
			"url", res.Request.URL,
		)
		return nil
	})

	return &Client{rc: rc}
}

// JSON fetches rawURL and returns the decoded body, or a TraversalError
// classifying the failure.
func (c *Client) JSON(ctx context.Context, rawURL string) (*Result, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, classifyTransport(err)
	}

	status := resp.StatusCode()
	body := resp.Body()

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, models.NewTraversalError(models.ErrCodePermissionDenied,
			fmt.Sprintf("endpoint denied access (HTTP %d)", status), nil)
	case status == http.StatusTooManyRequests:
		return nil, models.NewTraversalError(models.ErrCodeRateLimited,
			"still rate limited after retry budget", nil)
	case status >= 400:
		return nil, models.NewTraversalError(models.ErrCodeHTTPStatus,
			fmt.Sprintf("endpoint returned HTTP %d", status), nil)
	}

	if !gjson.ValidBytes(body) {
		return nil, notJSONError(body)
	}

	return &Result{
		StatusCode: status,
		Body:       body,
		JSON:       gjson.ParseBytes(body),
	}, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.rc.GetClient().CloseIdleConnections()
}

// classifyTransport wraps raw transport errors into typed TraversalErrors.
func classifyTransport(err error) *models.TraversalError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewTraversalError(models.ErrCodeTimeout, "request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return models.NewTraversalError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewTraversalError(models.ErrCodeTransport, "request failed after retries", err)
	}
}

// notJSONError builds the RESPONSE_NOT_JSON error for a 200 whose body does
// not decode. The message quotes a bounded single-line snippet and, for HTML
// bodies, the page title, which is usually a checkpoint or login wall.
func notJSONError(body []byte) *models.TraversalError {
	snippet := oneLine(string(body), snippetLen)
	msg := fmt.Sprintf("endpoint returned non-JSON body: %q", snippet)
	if title := extractTitle(string(body)); title != "" {
		msg = fmt.Sprintf("endpoint returned non-JSON body (page title %q): %q", title, snippet)
	}
	return models.NewTraversalError(models.ErrCodeNotJSON, msg, nil)
}

// oneLine flattens newlines to spaces and truncates to n runes.
func oneLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}
