package models

// SearchConfig describes one archive search. It is a plain value: build it,
// apply Defaults, Validate, then hand it to a traversal. Traversals never
// mutate it, so one config can back any number of independent traversals.
type SearchConfig struct {
	// SearchTerm is the keyword query. When only page ids are given it
	// defaults to ".", the archive's match-all term.
	SearchTerm string

	// PageIDs restricts the search to ads published by these page ids.
	PageIDs []string

	// Countries is the list of ISO 3166-1 alpha-2 codes to search in.
	// At least one is required.
	Countries []string

	// PageLimit is the number of records requested per endpoint page.
	PageLimit int // default: 500

	// RetryLimit caps retry attempts for a single page fetch.
	RetryLimit int // default: 3

	// Headers are extra HTTP headers applied to every request, in both
	// traversal strategies.
	Headers map[string]string

	// Verbose enables per-page debug logging.
	Verbose bool
}

// Defaults applies default values to unset fields.
func (c *SearchConfig) Defaults() {
	if c.SearchTerm == "" && len(c.PageIDs) > 0 {
		c.SearchTerm = "."
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 500
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
}

// Validate reports the first invalid field as an INVALID_INPUT error.
func (c *SearchConfig) Validate() error {
	if len(c.Countries) == 0 {
		return NewTraversalError(ErrCodeInvalidInput, "at least one country is required", nil)
	}
	for _, cc := range c.Countries {
		if len(cc) != 2 {
			return NewTraversalError(ErrCodeInvalidInput, "country codes must be ISO 3166-1 alpha-2: "+cc, nil)
		}
	}
	if c.SearchTerm == "" && len(c.PageIDs) == 0 {
		return NewTraversalError(ErrCodeInvalidInput, "a search term or page ids are required", nil)
	}
	return nil
}
