// Package fields validates the record field names consumers may select for
// export, mirroring the archive's published output schema.
package fields

import (
	"fmt"
	"sort"
	"strings"
)

// valid is the set of selectable record fields.
var valid = map[string]struct{}{
	"id":                                 {},
	"ad_creation_time":                   {},
	"ad_creative_bodies":                 {},
	"ad_creative_link_captions":          {},
	"ad_creative_link_descriptions":      {},
	"ad_creative_link_titles":            {},
	"ad_delivery_start_time":             {},
	"ad_delivery_stop_time":              {},
	"ad_snapshot_url":                    {},
	"age_country_gender_reach_breakdown": {},
	"beneficiary_payers":                 {},
	"bylines":                            {},
	"currency":                           {},
	"delivery_by_region":                 {},
	"demographic_distribution":           {},
	"estimated_audience_size":            {},
	"eu_total_reach":                     {},
	"impressions":                        {},
	"languages":                          {},
	"page_id":                            {},
	"page_name":                          {},
	"publisher_platforms":                {},
	"spend":                              {},
	"target_ages":                        {},
	"target_gender":                      {},
	"target_locations":                   {},
}

// Valid reports whether name is a selectable field.
func Valid(name string) bool {
	_, ok := valid[name]
	return ok
}

// All returns every selectable field name, sorted.
func All() []string {
	names := make([]string, 0, len(valid))
	for name := range valid {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeList splits a comma-separated field list, rejecting the whole
// list when any entry is unknown.
func NormalizeList(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	var bad []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !Valid(p) {
			bad = append(bad, p)
			continue
		}
		names = append(names, p)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("unknown fields: %s", strings.Join(bad, ", "))
	}
	return names, nil
}
