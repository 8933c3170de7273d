package crawler

import (
	"fmt"
	"strings"

	"serpharvest/pkg/logger"
)

// UnitStat summarizes one finished work unit
type UnitStat struct {
	Row         int
	Category    string
	Subcategory string
	Brand       string
	Pages       int
	URLs        int
}

// RunStats accumulates per-unit statistics for the end-of-run report
type RunStats struct {
	units []UnitStat
}

// NewRunStats creates an empty statistics accumulator
func NewRunStats() *RunStats {
	return &RunStats{}
}

// Append records one unit's outcome
func (s *RunStats) Append(st UnitStat) {
	s.units = append(s.units, st)
}

// Units returns the recorded unit stats in crawl order
func (s *RunStats) Units() []UnitStat {
	return s.units
}

// TotalURLs returns the number of new URLs stored across all units
func (s *RunStats) TotalURLs() int {
	total := 0
	for _, st := range s.units {
		total += st.URLs
	}
	return total
}

// Report logs a formatted table of every unit crawled during the run
func (s *RunStats) Report(log logger.Logger) {
	if len(s.units) == 0 {
		log.Info("no work units were crawled this run")
		return
	}

	widths := []int{3, 8, 11, 5}
	for _, st := range s.units {
		widths[0] = max(widths[0], len(fmt.Sprint(st.Row)))
		widths[1] = max(widths[1], len(st.Category))
		widths[2] = max(widths[2], len(st.Subcategory))
		widths[3] = max(widths[3], len(st.Brand))
	}

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %13s  %10s",
		widths[0], "Row", widths[1], "Category", widths[2], "Subcategory", widths[3], "Brand",
		"Pages Crawled", "Total URLs")
	log.Info(header)
	log.Info(strings.Repeat("-", len(header)))

	for _, st := range s.units {
		log.Info(fmt.Sprintf("%-*d  %-*s  %-*s  %-*s  %13d  %10d",
			widths[0], st.Row, widths[1], st.Category, widths[2], st.Subcategory, widths[3], st.Brand,
			st.Pages, st.URLs))
	}

	log.InfoWithFields("crawl finished", map[string]interface{}{
		"units":      len(s.units),
		"total_urls": s.TotalURLs(),
	})
}
