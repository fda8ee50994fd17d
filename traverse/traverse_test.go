package traverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadlib/adlib/config"
	"github.com/openadlib/adlib/models"
)

func newTestTraversal(t *testing.T, search models.SearchConfig) *Traversal {
	t.Helper()
	tr, err := New(search, config.HTTPConfig{}, config.BrowserConfig{})
	require.NoError(t, err)
	return tr
}

func TestNewRejectsInvalidSearch(t *testing.T) {
	_, err := New(models.SearchConfig{SearchTerm: "solar"}, config.HTTPConfig{}, config.BrowserConfig{})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestPublicSearchURL(t *testing.T) {
	tr := newTestTraversal(t, models.SearchConfig{
		SearchTerm: "solar panels",
		Countries:  []string{"US"},
	})

	want := "https://www.facebook.com/ads/library/?active_status=active&ad_type=all&country=US&is_targeted_country=false&media_type=all&q=solar+panels&search_type=keyword_unordered"
	assert.Equal(t, want, tr.PublicSearchURL())
}

func TestPublicSearchURLDeterministic(t *testing.T) {
	tr := newTestTraversal(t, models.SearchConfig{
		SearchTerm: "coffee",
		Countries:  []string{"NL", "BE"},
	})

	first := tr.PublicSearchURL()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tr.PublicSearchURL())
	}
	assert.Contains(t, first, "country=NL%2CBE")
}

func TestFirstPageURL(t *testing.T) {
	tr := newTestTraversal(t, models.SearchConfig{
		SearchTerm: "coffee",
		Countries:  []string{"US", "CA"},
		PageLimit:  250,
	})

	u := tr.firstPageURL()
	assert.Contains(t, u, "https://www.facebook.com/ads/library/async/search_ads/?")
	assert.Contains(t, u, "q=coffee")
	assert.Contains(t, u, "country=US%2CCA")
	assert.Contains(t, u, "limit=250")
	assert.Contains(t, u, "active_status=all")
	assert.NotContains(t, u, "search_page_ids")
}

func TestFirstPageURLWithPageIDs(t *testing.T) {
	tr := newTestTraversal(t, models.SearchConfig{
		PageIDs:   []string{"111", "222"},
		Countries: []string{"US"},
	})

	u := tr.firstPageURL()
	assert.Contains(t, u, "search_page_ids=111%2C222")
	assert.Contains(t, u, "q=.", "page-id searches fall back to the match-all term")
	assert.Contains(t, u, "limit=500")
}
