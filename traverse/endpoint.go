package traverse

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/openadlib/adlib/cards"
	"github.com/openadlib/adlib/config"
	"github.com/openadlib/adlib/fetch"
	"github.com/openadlib/adlib/models"
)

// Pages paginates the JSON search endpoint by continuation cursor. Each Next
// fetches exactly one page; a page with no data, or a response without a
// cursor, ends the traversal cleanly.
type Pages struct {
	client  *fetch.Client
	limiter *rate.Limiter
	verbose bool

	nextURL string
	after   time.Time

	cur    *models.RecordBatch
	err    error
	done   bool
	closed bool
	page   int
}

func newPages(client *fetch.Client, firstURL string, rps float64, verbose bool) *Pages {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Pages{
		client:  client,
		limiter: limiter,
		verbose: verbose,
		nextURL: firstURL,
	}
}

// Resume continues an endpoint traversal from a previously failed page URL.
// The URL carries the whole search state, so no SearchConfig is needed.
// Records whose delivery start predates after are dropped; pages the cutoff
// empties entirely are skipped, not yielded. A zero after keeps everything.
func Resume(httpCfg config.HTTPConfig, retryLimit int, headers map[string]string, resumeURL string, after time.Time) *Pages {
	client := fetch.NewClient(fetch.Options{
		Headers:      headers,
		RetryLimit:   retryLimit,
		Timeout:      httpCfg.Timeout,
		RetryWaitMin: httpCfg.RetryWaitMin,
		RetryWaitMax: httpCfg.RetryWaitMax,
	})
	p := newPages(client, resumeURL, httpCfg.PageRPS, false)
	p.after = after
	return p
}

// Next fetches the next page. False means the cursor chain ended or a fetch
// failed terminally; Err tells them apart.
func (p *Pages) Next(ctx context.Context) bool {
	for {
		if p.done || p.err != nil || p.closed {
			return false
		}
		if p.nextURL == "" {
			p.done = true
			return false
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.err = models.NewTraversalError(models.ErrCodeTimeout,
					"traversal canceled while pacing", err)
				return false
			}
		}

		res, err := p.client.JSON(ctx, p.nextURL)
		if err != nil {
			p.err = decorate(err)
			return false
		}

		data := res.JSON.Get("data")
		if !data.Exists() || !data.IsArray() || len(data.Array()) == 0 {
			// The endpoint signals the end of results with an empty or
			// missing data array, not an error.
			p.done = true
			return false
		}

		p.nextURL = res.JSON.Get("paging.next").String()
		p.page++

		records := cards.Decode(res.Body)
		if !p.after.IsZero() {
			records = keepSince(records, p.after)
			if len(records) == 0 {
				continue
			}
		}

		if p.verbose {
			slog.Debug("page fetched", "page", p.page, "records", len(records))
		}
		p.cur = &models.RecordBatch{Records: records, Source: models.SourceEndpoint}
		return true
	}
}

// Batch returns the batch the last successful Next produced.
func (p *Pages) Batch() *models.RecordBatch { return p.cur }

// Err returns the terminal error, or nil after clean exhaustion.
func (p *Pages) Err() error { return p.err }

// FailedURL returns the page URL whose fetch failed, for resuming later.
// Empty unless Err is non-nil.
func (p *Pages) FailedURL() string {
	if p.err == nil {
		return ""
	}
	return p.nextURL
}

// Close releases the fetch client. Idempotent.
func (p *Pages) Close() error {
	if !p.closed {
		p.closed = true
		p.client.Close()
	}
	return nil
}

// decorate rewords blocked-looking failures with the remedy the caller
// actually has: switching strategy.
func decorate(err error) error {
	if models.CodeOf(err) == models.ErrCodeNotJSON {
		return models.NewTraversalError(models.ErrCodeNotJSON,
			"endpoint likely blocked or serving a checkpoint page; retry with the browser strategy", err)
	}
	return err
}

// keepSince drops records whose delivery start predates the cutoff. Records
// without a parsable start date are kept.
func keepSince(records []models.Record, cutoff time.Time) []models.Record {
	kept := records[:0]
	for _, r := range records {
		start, ok := r.DeliveryStartTime()
		if !ok || !start.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
