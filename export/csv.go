// Package export drains traversal batches into consumer-facing sinks: CSV
// files, count summaries, and delivery-date trend tables.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/openadlib/adlib/traverse"
)

// WriteCSV streams batches into w as CSV with the requested fields as the
// header row, flushing as it goes so a mid-traversal failure still leaves
// every completed row on disk. Returns the number of data rows written.
// An exhausted-but-empty traversal yields a header-only file, which is a
// valid outcome, not an error.
func WriteCSV(ctx context.Context, w io.Writer, batches traverse.Batches, fieldList []string) (int, error) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(fieldList); err != nil {
		return 0, fmt.Errorf("export: write header: %w", err)
	}

	rows := 0
	for batches.Next(ctx) {
		batch := batches.Batch()
		for _, rec := range batch.Records {
			row := make([]string, len(fieldList))
			for i, f := range fieldList {
				row[i] = cell(rec[f])
			}
			if err := cw.Write(row); err != nil {
				return rows, fmt.Errorf("export: write row: %w", err)
			}
			rows++
		}
		cw.Flush()
		slog.Debug("batch exported", "source", batch.Source, "records", len(batch.Records), "rows", rows)
	}
	if err := batches.Err(); err != nil {
		return rows, err
	}

	cw.Flush()
	return rows, cw.Error()
}

// cell renders one record value for a CSV column: scalars as themselves,
// absent values empty, and anything structured as compact JSON.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
