package traverse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openadlib/adlib/models"
)

// Driver is the narrow browser capability the round state machine runs on.
// browser.Session implements it; tests substitute a script.
type Driver interface {
	// Navigate loads the results page. Called once, before the first round.
	Navigate(ctx context.Context, url string) error

	// WaitCapture blocks for the next intercepted payload batch, or until
	// the window elapses. A quiet window returns (nil, nil).
	WaitCapture(ctx context.Context, window time.Duration) (*models.RecordBatch, error)

	// QueryDOM parses the rendered markup into records.
	QueryDOM(ctx context.Context) ([]models.Record, error)

	// Interact nudges the page toward loading more results.
	Interact(ctx context.Context) error

	// Close tears the browser down. Must be idempotent.
	Close() error
}

// BrowserPages walks the results page in rounds: wait for an intercepted
// payload, fall back to the rendered DOM when the window stays quiet, then
// scroll and go again. Rounds that surface nothing unseen count as idle;
// enough idle rounds in a row mean the feed is exhausted.
type BrowserPages struct {
	drv     Driver
	url     string
	window  time.Duration
	maxIdle int
	verbose bool

	navigated       bool
	pendingInteract bool
	idleRounds      int
	seen            map[string]struct{}

	cur  *models.RecordBatch
	err  error
	done bool

	closeOnce sync.Once
	closeErr  error
}

// Next advances to the next batch of unseen records. False means the feed is
// exhausted or the session failed; Err tells them apart.
func (b *BrowserPages) Next(ctx context.Context) bool {
	if b.done || b.err != nil {
		return false
	}

	if !b.navigated {
		if err := b.drv.Navigate(ctx, b.url); err != nil {
			b.err = asTraversalError(err, "navigation failed")
			return false
		}
		b.navigated = true
	}

	for {
		// A yield ends a round mid-flight; catch up on the interaction
		// before listening again, or the page never loads more.
		if b.pendingInteract {
			b.pendingInteract = false
			if err := b.drv.Interact(ctx); err != nil {
				b.err = asTraversalError(err, "page interaction failed")
				return false
			}
		}

		batch, err := b.drv.WaitCapture(ctx, b.window)
		if err != nil {
			b.err = asTraversalError(err, "capture wait failed")
			return false
		}

		if batch != nil {
			if fresh := b.unseen(batch.Records); len(fresh) > 0 {
				b.yield(&models.RecordBatch{Records: fresh, Source: batch.Source})
				return true
			}
			// Replayed payload, nothing unseen: drain and keep listening.
			continue
		}

		// Quiet window. The rendered cards are the fallback witness for
		// content the interception missed.
		records, err := b.drv.QueryDOM(ctx)
		if err != nil {
			b.err = asTraversalError(err, "rendered-page query failed")
			return false
		}
		if fresh := b.unseen(records); len(fresh) > 0 {
			if b.verbose {
				slog.Debug("capture quiet, recovered records from rendered page", "records", len(fresh))
			}
			b.yield(&models.RecordBatch{Records: fresh, Source: models.SourceDOM})
			return true
		}

		b.idleRounds++
		if b.idleRounds >= b.maxIdle {
			b.done = true
			return false
		}
		if err := b.drv.Interact(ctx); err != nil {
			b.err = asTraversalError(err, "page interaction failed")
			return false
		}
	}
}

// Batch returns the batch the last successful Next produced.
func (b *BrowserPages) Batch() *models.RecordBatch { return b.cur }

// Err returns the terminal error, or nil after clean exhaustion.
func (b *BrowserPages) Err() error { return b.err }

// Close tears down the browser session. Idempotent, and safe to call while
// the iterator is mid-traversal; subsequent Next calls return false.
func (b *BrowserPages) Close() error {
	b.done = true
	b.closeOnce.Do(func() {
		b.closeErr = b.drv.Close()
	})
	return b.closeErr
}

func (b *BrowserPages) yield(batch *models.RecordBatch) {
	b.idleRounds = 0
	b.pendingInteract = true
	b.cur = batch
}

// unseen filters records already yielded this traversal, keyed by snapshot
// URL. Records without one pass through unfiltered.
func (b *BrowserPages) unseen(records []models.Record) []models.Record {
	var fresh []models.Record
	for _, r := range records {
		key := r.String("ad_snapshot_url")
		if key == "" {
			fresh = append(fresh, r)
			continue
		}
		if _, dup := b.seen[key]; dup {
			continue
		}
		b.seen[key] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}

// asTraversalError passes typed errors through and wraps everything else.
func asTraversalError(err error, msg string) error {
	if models.CodeOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.NewTraversalError(models.ErrCodeTimeout, msg, err)
	default:
		return models.NewTraversalError(models.ErrCodeBrowserCrash, msg, err)
	}
}
