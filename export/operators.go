package export

import (
	"context"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openadlib/adlib/models"
	"github.com/openadlib/adlib/traverse"
)

// Tally is the result of counting a traversal.
type Tally struct {
	Total    int
	BySource map[models.BatchSource]int
}

// Count drains batches and tallies records per acquisition source.
func Count(ctx context.Context, batches traverse.Batches) (*Tally, error) {
	tally := &Tally{BySource: make(map[models.BatchSource]int)}
	for batches.Next(ctx) {
		batch := batches.Batch()
		tally.Total += len(batch.Records)
		tally.BySource[batch.Source] += len(batch.Records)
	}
	if err := batches.Err(); err != nil {
		return tally, err
	}
	return tally, nil
}

// StartTimeTrend drains batches into a histogram of delivery start dates
// (YYYY-MM-DD). Records without a parsable start date are dropped.
func StartTimeTrend(ctx context.Context, batches traverse.Batches) (map[string]int, error) {
	trend := make(map[string]int)
	for batches.Next(ctx) {
		for _, rec := range batches.Batch().Records {
			if start, ok := rec.DeliveryStartTime(); ok {
				trend[start.Format("2006-01-02")]++
			}
		}
	}
	if err := batches.Err(); err != nil {
		return trend, err
	}
	return trend, nil
}

// RenderTally writes the tally as a table.
func RenderTally(w io.Writer, tally *Tally) {
	sources := make([]string, 0, len(tally.BySource))
	for source := range tally.BySource {
		sources = append(sources, string(source))
	}
	sort.Strings(sources)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Source", "Ads"})
	for _, source := range sources {
		tw.AppendRow(table.Row{source, tally.BySource[models.BatchSource(source)]})
	}
	tw.AppendFooter(table.Row{"Total", tally.Total})
	tw.Render()
}

// RenderTrend writes the histogram as a date-sorted table.
func RenderTrend(w io.Writer, trend map[string]int) {
	dates := make([]string, 0, len(trend))
	total := 0
	for date, n := range trend {
		dates = append(dates, date)
		total += n
	}
	sort.Strings(dates)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Delivery Start", "Ads"})
	for _, date := range dates {
		tw.AppendRow(table.Row{date, trend[date]})
	}
	tw.AppendFooter(table.Row{"Total", total})
	tw.Render()
}
