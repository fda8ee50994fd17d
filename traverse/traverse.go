// Package traverse walks an archive search to completion. Two strategies:
// paginate the JSON endpoint by cursor, or drive a headless browser over the
// public results page. Both hand out batches through the same pull iterator,
// and both keep "ran out of results" strictly apart from "failed".
package traverse

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/openadlib/adlib/browser"
	"github.com/openadlib/adlib/cards"
	"github.com/openadlib/adlib/config"
	"github.com/openadlib/adlib/fetch"
	"github.com/openadlib/adlib/models"
)

const (
	searchEndpoint = "https://www.facebook.com/ads/library/async/search_ads/"
	publicBase     = "https://www.facebook.com/ads/library/"
)

// Batches is the pull iterator every traversal strategy satisfies and every
// consumer drains. Usage mirrors sql.Rows:
//
//	for batches.Next(ctx) {
//		use(batches.Batch())
//	}
//	err := batches.Err() // nil means the search is exhausted, not failed
//	batches.Close()
//
// Iterators are single-pass and not restartable.
type Batches interface {
	// Next advances to the next batch. False means either exhaustion or
	// failure; Err tells them apart.
	Next(ctx context.Context) bool

	// Batch returns the batch Next advanced to. Valid until the next call
	// to Next.
	Batch() *models.RecordBatch

	// Err returns the terminal error, or nil after clean exhaustion.
	Err() error

	// Close releases the strategy's resources. Idempotent, and required
	// even when the iterator was not drained.
	Close() error
}

// Traversal builds iterators over one search. The strategy is the caller's
// choice; a traversal never switches strategy mid-stream, it reports failure
// and leaves the decision to the caller.
type Traversal struct {
	search     models.SearchConfig
	httpCfg    config.HTTPConfig
	browserCfg config.BrowserConfig

	// Envelope overrides the browser capture predicate. Nil means
	// cards.DefaultEnvelope.
	Envelope cards.EnvelopeFunc
}

// New validates the search and returns a Traversal over it.
func New(search models.SearchConfig, httpCfg config.HTTPConfig, browserCfg config.BrowserConfig) (*Traversal, error) {
	search.Defaults()
	if err := search.Validate(); err != nil {
		return nil, err
	}
	return &Traversal{
		search:     search,
		httpCfg:    httpCfg,
		browserCfg: browserCfg,
	}, nil
}

// PublicSearchURL returns the shareable results-page URL for this search.
// It is pure: the same search yields the identical string on every call.
func (t *Traversal) PublicSearchURL() string {
	q := url.Values{}
	q.Set("active_status", "active")
	q.Set("ad_type", "all")
	q.Set("country", strings.Join(t.search.Countries, ","))
	q.Set("is_targeted_country", "false")
	q.Set("media_type", "all")
	q.Set("q", t.search.SearchTerm)
	q.Set("search_type", "keyword_unordered")
	return publicBase + "?" + q.Encode()
}

// firstPageURL builds the endpoint URL for page one; every later page URL
// comes from the response cursor.
func (t *Traversal) firstPageURL() string {
	q := url.Values{}
	q.Set("q", t.search.SearchTerm)
	q.Set("active_status", "all")
	q.Set("ad_type", "all")
	q.Set("country", strings.Join(t.search.Countries, ","))
	q.Set("limit", strconv.Itoa(t.search.PageLimit))
	if len(t.search.PageIDs) > 0 {
		q.Set("search_page_ids", strings.Join(t.search.PageIDs, ","))
	}
	return searchEndpoint + "?" + q.Encode()
}

// Endpoint returns a cursor-pagination iterator over the JSON endpoint.
// No network activity happens until the first Next.
func (t *Traversal) Endpoint() *Pages {
	client := fetch.NewClient(fetch.Options{
		Referer:      t.PublicSearchURL(),
		Headers:      t.search.Headers,
		RetryLimit:   t.search.RetryLimit,
		Timeout:      t.httpCfg.Timeout,
		RetryWaitMin: t.httpCfg.RetryWaitMin,
		RetryWaitMax: t.httpCfg.RetryWaitMax,
	})
	return newPages(client, t.firstPageURL(), t.httpCfg.PageRPS, t.search.Verbose)
}

// Browser launches a headless session and returns the browser-strategy
// iterator. A missing browser runtime fails here, before any navigation.
func (t *Traversal) Browser() (*BrowserPages, error) {
	sess, err := browser.New(t.browserCfg, t.search.Headers, t.Envelope)
	if err != nil {
		return nil, err
	}
	return t.BrowserWith(sess), nil
}

// BrowserWith runs the browser traversal over a caller-supplied driver.
// Browser is the production path; this exists so the round state machine can
// run against anything satisfying Driver.
func (t *Traversal) BrowserWith(drv Driver) *BrowserPages {
	return &BrowserPages{
		drv:     drv,
		url:     t.PublicSearchURL(),
		window:  t.browserCfg.CaptureWindow,
		maxIdle: t.browserCfg.MaxIdleRounds,
		verbose: t.search.Verbose,
		seen:    make(map[string]struct{}),
	}
}
