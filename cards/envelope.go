// Package cards turns raw archive payloads into records: intercepted JSON
// bodies on the fast path, rendered result markup on the fallback path.
package cards

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/openadlib/adlib/models"
)

// EnvelopeFunc decides whether an intercepted response body is a search
// payload worth decoding. Implementations must be cheap; they run inside the
// browser's network interception path.
type EnvelopeFunc func(body []byte) bool

// DefaultEnvelope accepts the two shapes the archive is known to ship: an
// object carrying a `data` array, or a bare non-empty array.
func DefaultEnvelope(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	root := gjson.ParseBytes(body)
	if root.IsObject() {
		return root.Get("data").IsArray()
	}
	return root.IsArray() && len(root.Array()) > 0
}

// Decode extracts the records from a payload accepted by an EnvelopeFunc.
// Non-object entries are skipped rather than failing the whole payload.
func Decode(body []byte) []models.Record {
	root := gjson.ParseBytes(body)
	list := root
	if root.IsObject() {
		list = root.Get("data")
	}

	var records []models.Record
	for _, item := range list.Array() {
		if !item.IsObject() {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal([]byte(item.Raw), &rec); err == nil {
			records = append(records, rec)
		}
	}
	return records
}
