package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"serpharvest/pkg/checkpoint"
	"serpharvest/pkg/config"
	"serpharvest/pkg/logger"
	"serpharvest/pkg/ratelimit"
	"serpharvest/pkg/retry"
	"serpharvest/pkg/serp"
	"serpharvest/pkg/worklist"
)

// querySuffix narrows results to completed listings
const querySuffix = `("Sold" OR "Final bid")`

// UnitResult summarizes one work unit's crawl
type UnitResult struct {
	Pages int
	URLs  int
}

// Engine drives one work unit through repeated search calls until a
// termination condition fires. The checkpoint is persisted before every
// network call, so a crash mid-call resumes at the same page; the worst
// case is a duplicate provider call, never lost progress, since storage
// dedup is idempotent.
type Engine struct {
	search serp.Searcher
	dedup  *Deduplicator
	ckpt   *checkpoint.Manager
	pacer  ratelimit.Pacer
	cfg    config.CrawlConfig
	logger logger.Logger
}

// NewEngine creates a pagination engine
func NewEngine(search serp.Searcher, dedup *Deduplicator, ckpt *checkpoint.Manager,
	pacer ratelimit.Pacer, cfg config.CrawlConfig, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		search: search,
		dedup:  dedup,
		ckpt:   ckpt,
		pacer:  pacer,
		cfg:    cfg,
		logger: log,
	}
}

// buildQuery builds the provider query for one work unit
func (e *Engine) buildQuery(subcategory, brand string) string {
	return fmt.Sprintf(`site:%s "%s" "%s" %s`, e.cfg.SiteMarker, subcategory, brand, querySuffix)
}

// Run crawls one work unit. A non-nil resume starts mid-pagination at the
// checkpointed offset and skips the probe; its ceiling stays at the default
// rather than silently resetting the offset.
func (e *Engine) Run(ctx context.Context, unit worklist.Unit, cp *checkpoint.Checkpoint, resume *Resumption) (res UnitResult, err error) {
	pageSize := e.cfg.ResultsPerPage
	start, pageNum := 0, 0
	if resume != nil {
		start, pageNum = resume.Start, resume.PageNum
	}
	// Pages reflects progress even when the unit is cut short
	defer func() { res.Pages = pageNum }()
	maxStart := e.cfg.DefaultMaxStart

	log := e.logger.WithFields(map[string]interface{}{
		"row":         unit.Row,
		"category":    unit.Category,
		"subcategory": unit.Subcategory,
		"brand":       unit.Brand,
	})

	query := e.buildQuery(unit.Subcategory, unit.Brand)

	if resume != nil {
		log.InfoWithFields("resuming unit from checkpoint", map[string]interface{}{
			"start":    start,
			"page_num": pageNum,
		})
	} else {
		log.Info("crawling unit")
	}

	if err := e.pacer.WaitFirst(ctx); err != nil {
		return res, err
	}

	seen := e.dedup.Begin(ctx, unit)
	log.DebugWithFields("seen url set loaded", map[string]interface{}{
		"known_urls": seen.SeenCount(),
	})

	if resume == nil {
		maxStart = e.probe(ctx, query, maxStart, log)
	}

	consecutiveEmpty := 0

	for start <= maxStart {
		cp.Touch(unit.Subcategory, unit.Brand, start, pageNum)
		if err := e.ckpt.Save(cp); err != nil {
			log.WithError(err).Warn("failed to save checkpoint")
		}

		if err := e.pacer.Wait(ctx); err != nil {
			return res, err
		}

		resp, err := e.fetchWithRetry(ctx, query, start)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			// Degraded to an empty page; the offset still advances
			log.ErrorWithFields("skipping page after exhausted retries", map[string]interface{}{
				"start":       start,
				"max_retries": e.cfg.MaxRetries,
				"error":       err.Error(),
			})
			consecutiveEmpty++
			start += pageSize
			continue
		}

		organic := serp.Organic(resp)
		total, totalOK := serp.TotalResults(resp)
		totalField := interface{}("N/A")
		if totalOK {
			totalField = total
		}
		log.InfoWithFields("page fetched", map[string]interface{}{
			"start":         start,
			"page":          pageNum + 1,
			"organic":       len(organic),
			"total_results": totalField,
		})

		foundThisPage := 0
		for _, r := range organic {
			link := serp.ExtractLink(r)
			if link == "" || !containsMarker(link, e.cfg.SiteMarker) {
				continue
			}
			if seen.TrySave(ctx, link) {
				foundThisPage++
				res.URLs++
			}
		}
		pageNum++

		log.InfoWithFields("page processed", map[string]interface{}{
			"page":  pageNum,
			"found": foundThisPage,
		})

		if foundThisPage == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= e.cfg.MaxConsecutiveEmpty {
				log.InfoWithFields("stopping pagination, consecutive empty pages", map[string]interface{}{
					"consecutive_empty": consecutiveEmpty,
				})
				break
			}
		} else {
			consecutiveEmpty = 0
		}

		if start+pageSize > maxStart {
			log.InfoWithFields("stopping pagination, reached ceiling", map[string]interface{}{
				"max_start": maxStart,
			})
			break
		}

		start += pageSize
	}

	return res, nil
}

// probe issues one reconnaissance call at offset 0 to refine the pagination
// ceiling from the provider's total-result-count estimate. Any failure keeps
// the default ceiling.
func (e *Engine) probe(ctx context.Context, query string, defaultMax int, log logger.Logger) int {
	pageSize := e.cfg.ResultsPerPage

	resp, err := e.search.Search(ctx, query, 0, pageSize)
	if err != nil {
		log.WarnWithFields("probe request failed, using default ceiling", map[string]interface{}{
			"max_start": defaultMax,
			"error":     err.Error(),
		})
		return defaultMax
	}

	total, ok := serp.TotalResults(resp)
	if !ok {
		log.InfoWithFields("total results estimate unavailable, using default ceiling", map[string]interface{}{
			"max_start": defaultMax,
		})
		return defaultMax
	}

	estimatedPages := (total + pageSize - 1) / pageSize
	maxStart := (estimatedPages - 1) * pageSize
	log.InfoWithFields("refined pagination ceiling from probe", map[string]interface{}{
		"total_results":   total,
		"estimated_pages": estimatedPages,
		"max_start":       maxStart,
	})
	return maxStart
}

// fetchWithRetry performs one page fetch with bounded retries and the
// provider backoff policy. Exhausted retries surface as ErrFetchFailed.
func (e *Engine) fetchWithRetry(ctx context.Context, query string, start int) (*serp.Response, error) {
	backoff := &retry.ProviderBackoff{
		Unit:     e.cfg.RetryBaseDelay,
		MaxDelay: 5 * time.Minute,
	}

	return retry.DoWithResult(func() (*serp.Response, error) {
		return e.search.Search(ctx, query, start, e.cfg.ResultsPerPage)
	}, &retry.Config{
		MaxAttempts: e.cfg.MaxRetries,
		Backoff:     backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      e.logger,
	})
}

func containsMarker(link, marker string) bool {
	return marker != "" && strings.Contains(link, marker)
}
