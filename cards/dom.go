package cards

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openadlib/adlib/models"
)

// cardAnchorSelector matches the snapshot links every rendered result card
// carries, whatever else the markup does that week.
const cardAnchorSelector = `a[href*="/ads/library/"]`

// nameSelectors are tried in order against the card container to recover the
// advertiser name. The fallback is the anchor's own text.
var nameSelectors = []string{"[data-testid]", "[aria-label]", "h3", "span"}

// ParseHTML recovers ad records from rendered results markup. Only the fields
// the cards reliably expose come back: page_name and ad_snapshot_url.
// Duplicate snapshot URLs within one document collapse to the first hit.
func ParseHTML(htmlStr string) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}

	var records []models.Record
	seen := make(map[string]struct{})

	doc.Find(cardAnchorSelector).Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		records = append(records, models.Record{
			"page_name":       cardName(anchor),
			"ad_snapshot_url": href,
		})
	})

	return records, nil
}

// cardName walks up to the anchor's card container and tries the labels the
// markup has carried at one time or another.
func cardName(anchor *goquery.Selection) string {
	card := anchor.Closest("div")
	if card.Length() > 0 {
		for _, sel := range nameSelectors {
			if name := strings.TrimSpace(card.Find(sel).First().Text()); name != "" {
				return name
			}
		}
	}
	return strings.TrimSpace(anchor.Text())
}
