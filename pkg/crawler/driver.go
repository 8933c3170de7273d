package crawler

import (
	"context"
	"fmt"

	"serpharvest/pkg/checkpoint"
	"serpharvest/pkg/logger"
	"serpharvest/pkg/worklist"
)

// Driver sequences work units across the workbook's sheets. It owns the
// single live checkpoint record and the run statistics; one unit runs at a
// time, so the persisted checkpoint always reflects a consistent position.
type Driver struct {
	engine *Engine
	ckpt   *checkpoint.Manager
	stats  *RunStats
	logger logger.Logger
}

// NewDriver creates a crawl driver
func NewDriver(engine *Engine, ckpt *checkpoint.Manager, log logger.Logger) *Driver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Driver{
		engine: engine,
		ckpt:   ckpt,
		stats:  NewRunStats(),
		logger: log,
	}
}

// Stats returns the accumulated per-unit statistics
func (d *Driver) Stats() *RunStats {
	return d.stats
}

// Run crawls every sheet of the workbook in order. An existing checkpoint
// resumes its sheet and skips the sheets before it; a sheet-level failure
// stops the run with the checkpoint left in place for a future resume. The
// checkpoint is cleared only after every sheet completed.
func (d *Driver) Run(ctx context.Context, wb *worklist.Workbook) error {
	resume, err := d.ckpt.Load()
	if err != nil {
		d.logger.WithError(err).Warn("failed to read checkpoint, starting fresh")
		resume = nil
	}

	resumeMatched := resume == nil

	for _, name := range wb.SheetNames() {
		if resume != nil && resume.Sheet != name {
			d.logger.InfoWithFields("skipping sheet, checkpoint belongs to another sheet", map[string]interface{}{
				"sheet":            name,
				"checkpoint_sheet": resume.Sheet,
			})
			continue
		}

		sheet, err := wb.Load(name)
		if err != nil {
			return fmt.Errorf("failed to load work list for sheet %s: %w", name, err)
		}

		if err := d.CrawlSheet(ctx, sheet, resume); err != nil {
			return err
		}

		resume = nil
		resumeMatched = true
	}

	if !resumeMatched {
		d.logger.WarnWithFields("checkpoint sheet not found in workbook, leaving checkpoint in place", map[string]interface{}{
			"checkpoint_sheet": resume.Sheet,
		})
		return nil
	}

	if err := d.ckpt.Clear(); err != nil {
		d.logger.WithError(err).Warn("failed to clear checkpoint after completed run")
	}
	return nil
}

// CrawlSheet crawls one sheet's work units in order. The resume checkpoint
// is consulted once, up front, to plan which units are skipped, resumed, or
// run fresh. A single unit's failure is logged and the driver proceeds to
// the next unit; cancellation stops the sheet after one final checkpoint
// write.
func (d *Driver) CrawlSheet(ctx context.Context, sheet *worklist.Sheet, resume *checkpoint.Checkpoint) error {
	log := d.logger.WithField("sheet", sheet.Name)
	log.InfoWithFields("processing sheet", map[string]interface{}{
		"category":      sheet.Category,
		"subcategories": len(sheet.Subcategories),
	})

	cp := &checkpoint.Checkpoint{
		Sheet:    sheet.Name,
		Category: sheet.Category,
	}
	if resume != nil && resume.Sheet == sheet.Name {
		cp.Subcategory = resume.Subcategory
		cp.Brand = resume.Brand
		cp.Start = resume.Start
		cp.PageNum = resume.PageNum
	} else {
		resume = nil
	}

	for _, ins := range PlanResume(sheet, resume) {
		if ctx.Err() != nil {
			d.flushCheckpoint(cp)
			return ctx.Err()
		}

		if ins.Skip {
			log.InfoWithFields("skipping unit, before checkpoint", map[string]interface{}{
				"subcategory": ins.Unit.Subcategory,
				"brand":       ins.Unit.Brand,
			})
			continue
		}

		d.runUnit(ctx, ins, cp)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

// runUnit executes one work unit. Whatever happens inside the unit, a stats
// row is appended and the checkpoint is flushed before moving on.
func (d *Driver) runUnit(ctx context.Context, ins Instruction, cp *checkpoint.Checkpoint) {
	unit := ins.Unit
	var res UnitResult

	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorWithFields("panic while processing unit, continuing with next unit", map[string]interface{}{
				"subcategory": unit.Subcategory,
				"brand":       unit.Brand,
				"panic":       fmt.Sprint(r),
			})
		}
		d.stats.Append(UnitStat{
			Row:         unit.Row,
			Category:    unit.Category,
			Subcategory: unit.Subcategory,
			Brand:       unit.Brand,
			Pages:       res.Pages,
			URLs:        res.URLs,
		})
		d.flushCheckpoint(cp)
	}()

	start, pageNum := 0, 0
	if ins.Resume != nil {
		start, pageNum = ins.Resume.Start, ins.Resume.PageNum
	}
	cp.Touch(unit.Subcategory, unit.Brand, start, pageNum)

	var err error
	res, err = d.engine.Run(ctx, unit, cp, ins.Resume)
	if err != nil {
		if ctx.Err() != nil {
			d.logger.WarnWithFields("interrupted, saving checkpoint before exit", map[string]interface{}{
				"subcategory": unit.Subcategory,
				"brand":       unit.Brand,
			})
			return
		}
		d.logger.ErrorWithFields("unit failed, continuing with next unit", map[string]interface{}{
			"subcategory": unit.Subcategory,
			"brand":       unit.Brand,
			"error":       err.Error(),
		})
	}
}

func (d *Driver) flushCheckpoint(cp *checkpoint.Checkpoint) {
	if err := d.ckpt.Save(cp); err != nil {
		d.logger.WithError(err).Warn("failed to save checkpoint")
	}
}
