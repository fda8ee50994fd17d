package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadlib/adlib/models"
)

func TestCountTalliesPerSource(t *testing.T) {
	batches := &sliceBatches{batches: []*models.RecordBatch{
		{Source: models.SourceEndpoint, Records: []models.Record{{"id": "1"}, {"id": "2"}, {"id": "3"}}},
		{Source: models.SourceCapture, Records: []models.Record{{"id": "4"}}},
		{Source: models.SourceDOM, Records: []models.Record{{"id": "5"}, {"id": "6"}}},
	}}

	tally, err := Count(context.Background(), batches)
	require.NoError(t, err)
	assert.Equal(t, 6, tally.Total)
	assert.Equal(t, map[models.BatchSource]int{
		models.SourceEndpoint: 3,
		models.SourceCapture:  1,
		models.SourceDOM:      2,
	}, tally.BySource)
}

func TestCountPropagatesTraversalError(t *testing.T) {
	failure := models.NewTraversalError(models.ErrCodePermissionDenied, "blocked", nil)
	batches := &sliceBatches{
		batches: []*models.RecordBatch{
			{Source: models.SourceEndpoint, Records: []models.Record{{"id": "1"}}},
		},
		err: failure,
	}

	_, err := Count(context.Background(), batches)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodePermissionDenied, models.CodeOf(err))
}

func TestStartTimeTrendGroupsByDay(t *testing.T) {
	batches := &sliceBatches{batches: []*models.RecordBatch{
		{Source: models.SourceEndpoint, Records: []models.Record{
			{"id": "1", "ad_delivery_start_time": "2023-01-01"},
			{"id": "2", "ad_delivery_start_time": "2023-01-01"},
			{"id": "3", "ad_delivery_start_time": "2023-02-03"},
		}},
		{Source: models.SourceEndpoint, Records: []models.Record{
			{"id": "4", "ad_delivery_start_time": "not a date"},
			{"id": "5"},
		}},
	}}

	trend, err := StartTimeTrend(context.Background(), batches)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"2023-01-01": 2,
		"2023-02-03": 1,
	}, trend, "records without a parseable start date are left out")
}

func TestRenderTally(t *testing.T) {
	var buf bytes.Buffer
	RenderTally(&buf, &Tally{
		Total: 4,
		BySource: map[models.BatchSource]int{
			models.SourceEndpoint: 3,
			models.SourceDOM:      1,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "endpoint")
	assert.Contains(t, out, "dom")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "4")
}

func TestRenderTrendSortsByDate(t *testing.T) {
	var buf bytes.Buffer
	RenderTrend(&buf, map[string]int{
		"2023-03-01": 1,
		"2023-01-15": 2,
	})

	out := buf.String()
	first := bytes.Index(buf.Bytes(), []byte("2023-01-15"))
	second := bytes.Index(buf.Bytes(), []byte("2023-03-01"))
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "rows come out in date order")
	assert.Contains(t, out, "TOTAL")
}
