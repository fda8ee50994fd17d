package models

import (
	"regexp"
	"strconv"
	"time"
)

// BatchSource identifies which acquisition path produced a batch.
type BatchSource string

const (
	// SourceEndpoint marks batches paginated from the JSON search endpoint.
	SourceEndpoint BatchSource = "endpoint"

	// SourceCapture marks batches intercepted from in-flight browser XHRs.
	SourceCapture BatchSource = "capture"

	// SourceDOM marks batches recovered from rendered result markup. These
	// carry only the fields the cards expose, not the full record schema.
	SourceDOM BatchSource = "dom"
)

// Record is a single archived ad. The upstream payload schema shifts without
// notice, so records stay schemaless maps; the accessors below cover the few
// fields consumers key on.
type Record map[string]any

// snapshotIDPattern matches the numeric archive id inside a snapshot URL,
// e.g. ".../ads/archive/render_ad/?id=123456789&access_token=...".
var snapshotIDPattern = regexp.MustCompile(`/\?id=([0-9]+)`)

// String returns the named field rendered as a string. Absent fields and
// non-scalar values yield "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// ArchiveID extracts the numeric archive id from the record's snapshot URL,
// or "" when the record has no parsable snapshot URL.
func (r Record) ArchiveID() string {
	u := r.String("ad_snapshot_url")
	if u == "" {
		return ""
	}
	m := snapshotIDPattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

// DeliveryStartTime parses the record's ad_delivery_start_time date
// (YYYY-MM-DD). The second return is false when the field is absent or
// malformed.
func (r Record) DeliveryStartTime() (time.Time, bool) {
	s := r.String("ad_delivery_start_time")
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RecordBatch is one page (or one intercepted payload) worth of records,
// tagged with the path that produced it.
type RecordBatch struct {
	Records []Record
	Source  BatchSource
}
