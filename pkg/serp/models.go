package serp

// searchRequest is the provider's realtime query payload. The provider takes
// a 1-indexed page number, not a raw result offset.
type searchRequest struct {
	Source    string         `json:"source"`
	Query     string         `json:"query"`
	StartPage int            `json:"start_page"`
	Pages     int            `json:"pages"`
	Parse     bool           `json:"parse"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Response is the provider's nested response envelope
type Response struct {
	Results []ResultPage `json:"results"`
}

// ResultPage holds the parsed content of one query
type ResultPage struct {
	Content PageContent `json:"content"`
}

// PageContent wraps the parsed search results
type PageContent struct {
	Results PageResults `json:"results"`
}

// PageResults holds the organic results and search metadata
type PageResults struct {
	Organic           []Result          `json:"organic"`
	SearchInformation SearchInformation `json:"search_information"`
}

// SearchInformation carries the provider's result-count estimate. The count
// may be rendered as a number or as a string with thousands separators.
type SearchInformation struct {
	TotalResultsCount interface{} `json:"total_results_count"`
}

// Result is a single organic search result. The landing URL appears under
// one of several alternate field names depending on the result layout.
type Result struct {
	URL     string `json:"url"`
	Link    string `json:"link"`
	URLFull string `json:"url_full"`
	Title   string `json:"title"`
	Pos     int    `json:"pos"`
}
