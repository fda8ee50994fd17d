package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadlib/adlib/config"
	"github.com/openadlib/adlib/models"
	"github.com/openadlib/adlib/traverse"
)

// sliceBatches replays canned batches and then reports a configurable
// terminal error (nil for clean exhaustion).
type sliceBatches struct {
	batches []*models.RecordBatch
	err     error

	i   int
	cur *models.RecordBatch
}

func (s *sliceBatches) Next(ctx context.Context) bool {
	if s.i >= len(s.batches) {
		return false
	}
	s.cur = s.batches[s.i]
	s.i++
	return true
}

func (s *sliceBatches) Batch() *models.RecordBatch { return s.cur }
func (s *sliceBatches) Err() error                 { return s.err }
func (s *sliceBatches) Close() error               { return nil }

func parseCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSVSelectsAndOrdersFields(t *testing.T) {
	batches := &sliceBatches{batches: []*models.RecordBatch{
		{
			Source: models.SourceEndpoint,
			Records: []models.Record{
				{
					"id":                 "101",
					"page_name":          "Acme, Inc.",
					"page_id":            float64(7),
					"ad_creative_bodies": []any{"first", "second"},
					"spend":              map[string]any{"lower_bound": "100"},
				},
			},
		},
	}}

	var buf bytes.Buffer
	fieldList := []string{"id", "page_name", "page_id", "ad_creative_bodies", "spend", "languages"}
	rows, err := WriteCSV(context.Background(), &buf, batches, fieldList)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	parsed := parseCSV(t, &buf)
	require.Len(t, parsed, 2)
	assert.Equal(t, fieldList, parsed[0])
	assert.Equal(t, []string{
		"101",
		"Acme, Inc.",
		"7",
		`["first","second"]`,
		`{"lower_bound":"100"}`,
		"",
	}, parsed[1])
}

func TestWriteCSVEmptyTraversal(t *testing.T) {
	var buf bytes.Buffer
	rows, err := WriteCSV(context.Background(), &buf, &sliceBatches{}, []string{"id", "page_name"})
	require.NoError(t, err)
	assert.Equal(t, 0, rows)

	parsed := parseCSV(t, &buf)
	require.Len(t, parsed, 1, "an empty result set still writes the header")
	assert.Equal(t, []string{"id", "page_name"}, parsed[0])
}

func TestWriteCSVKeepsRowsWrittenBeforeFailure(t *testing.T) {
	failure := models.NewTraversalError(models.ErrCodeRateLimited, "throttled", nil)
	batches := &sliceBatches{
		batches: []*models.RecordBatch{
			{Source: models.SourceEndpoint, Records: []models.Record{{"id": "1"}, {"id": "2"}}},
		},
		err: failure,
	}

	var buf bytes.Buffer
	rows, err := WriteCSV(context.Background(), &buf, batches, []string{"id"})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeRateLimited, models.CodeOf(err))
	assert.Equal(t, 2, rows)

	parsed := parseCSV(t, &buf)
	assert.Len(t, parsed, 3, "rows written before the failure survive on disk")
}

func TestWriteCSVEndToEnd(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/page/1", func(w http.ResponseWriter, r *http.Request) {
		var items []string
		for i := 1; i <= 5; i++ {
			items = append(items, fmt.Sprintf(`{"id":"%d","page_name":"advertiser %d"}`, i, i))
		}
		fmt.Fprintf(w, `{"data":[%s],"paging":{"next":%q}}`, strings.Join(items, ","), srv.URL+"/page/2")
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		var items []string
		for i := 6; i <= 8; i++ {
			items = append(items, fmt.Sprintf(`{"id":"%d","page_name":"advertiser %d"}`, i, i))
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(items, ","))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	httpCfg := config.HTTPConfig{
		Timeout:      5 * time.Second,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
	pages := traverse.Resume(httpCfg, 3, nil, srv.URL+"/page/1", time.Time{})
	defer pages.Close()

	var buf bytes.Buffer
	rows, err := WriteCSV(context.Background(), &buf, pages, []string{"id", "page_name"})
	require.NoError(t, err)
	assert.Equal(t, 8, rows)

	parsed := parseCSV(t, &buf)
	require.Len(t, parsed, 9)
	for i, row := range parsed[1:] {
		assert.Equal(t, fmt.Sprintf("%d", i+1), row[0], "records keep endpoint order")
	}
}
