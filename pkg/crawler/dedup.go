package crawler

import (
	"context"
	"strings"

	"serpharvest/pkg/logger"
	"serpharvest/pkg/storage"
	"serpharvest/pkg/worklist"
)

// Canonicalize strips the trailing &-delimited query fragment from a result
// URL. The canonical form is the dedup key and the form persisted to storage.
func Canonicalize(url string) string {
	if i := strings.Index(url, "&"); i >= 0 {
		return url[:i]
	}
	return url
}

// Deduplicator bridges the pagination engine and the URL store
type Deduplicator struct {
	store  storage.URLStore
	logger logger.Logger
}

// NewDeduplicator creates a deduplicator over the given store
func NewDeduplicator(store storage.URLStore, log logger.Logger) *Deduplicator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Deduplicator{store: store, logger: log}
}

// Begin loads the already-seen URL set for one work unit. A load failure is
// logged and yields an empty set; the storage uniqueness constraint covers
// the resulting duplicate save attempts.
func (d *Deduplicator) Begin(ctx context.Context, unit worklist.Unit) *UnitDedup {
	seen, err := d.store.LoadSeen(ctx, unit.Category, unit.Subcategory, unit.Brand)
	if err != nil {
		d.logger.WarnWithFields("failed to load seen urls, continuing with empty set", map[string]interface{}{
			"subcategory": unit.Subcategory,
			"brand":       unit.Brand,
			"error":       err.Error(),
		})
		seen = make(map[string]struct{})
	}

	return &UnitDedup{
		parent: d,
		unit:   unit,
		seen:   seen,
	}
}

// UnitDedup tracks the seen-URL set of a single work unit. It lives for one
// unit and is discarded when the unit finishes.
type UnitDedup struct {
	parent *Deduplicator
	unit   worklist.Unit
	seen   map[string]struct{}
}

// TrySave canonicalizes and persists one URL. It reports true only when the
// URL was newly stored; previously seen URLs, duplicate-key rejections, and
// save failures all report false.
func (u *UnitDedup) TrySave(ctx context.Context, url string) bool {
	clean := Canonicalize(url)
	if _, ok := u.seen[clean]; ok {
		return false
	}
	u.seen[clean] = struct{}{}

	inserted, err := u.parent.store.SaveURL(ctx, u.unit.Category, u.unit.Subcategory, u.unit.Brand, clean)
	if err != nil {
		u.parent.logger.WarnWithFields("failed to save url", map[string]interface{}{
			"url":   clean,
			"error": err.Error(),
		})
		return false
	}

	return inserted
}

// SeenCount returns the size of the in-memory seen set
func (u *UnitDedup) SeenCount() int {
	return len(u.seen)
}
