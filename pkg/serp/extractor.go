package serp

import (
	"strconv"
	"strings"
)

// Organic pulls the organic result records out of a response envelope.
// A missing or malformed envelope yields an empty slice, never an error.
func Organic(resp *Response) []Result {
	if resp == nil || len(resp.Results) == 0 {
		return nil
	}
	return resp.Results[0].Content.Results.Organic
}

// TotalResults extracts the provider's total-result-count estimate. The
// provider may render it as a number or as a string with thousands
// separators ("1,234"); absent or unparseable values yield (0, false).
func TotalResults(resp *Response) (int, bool) {
	if resp == nil || len(resp.Results) == 0 {
		return 0, false
	}

	raw := resp.Results[0].Content.Results.SearchInformation.TotalResultsCount
	switch v := raw.(type) {
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if cleaned == "" {
			return 0, false
		}
		n, err := strconv.Atoi(cleaned)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	case float64:
		if v <= 0 {
			return 0, false
		}
		return int(v), true
	case int:
		if v <= 0 {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// ExtractLink returns the landing URL of a result record. The first present,
// non-empty, HTTP(S)-prefixed candidate field wins; otherwise empty string.
func ExtractLink(r Result) string {
	for _, candidate := range []string{r.URL, r.Link, r.URLFull} {
		if candidate != "" && strings.HasPrefix(candidate, "http") {
			return candidate
		}
	}
	return ""
}
