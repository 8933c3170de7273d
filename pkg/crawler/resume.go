package crawler

import (
	"serpharvest/pkg/checkpoint"
	"serpharvest/pkg/worklist"
)

// Resumption is the exact mid-pagination position of a resumed work unit
type Resumption struct {
	Start   int
	PageNum int
}

// Instruction tells the driver what to do with one work unit
type Instruction struct {
	Unit worklist.Unit
	// Skip means the unit completed before the checkpoint was written
	Skip bool
	// Resume, when set, carries the offset to continue from; the probe
	// phase is skipped for a resumed unit
	Resume *Resumption
}

// PlanResume walks the sheet's work units in order and decides, per unit,
// whether to skip it, resume it mid-pagination, or run it fresh.
//
// Units in subcategories preceding the checkpoint's subcategory are skipped,
// as are brands preceding the checkpoint's brand within its subcategory
// (compared by list index, not lexically). The exact matching unit resumes
// at the stored offset; everything after it runs fresh. A checkpoint whose
// brand is no longer in the sheet (the work list changed between runs)
// stops the skipping at its subcategory instead of failing.
func PlanResume(sheet *worklist.Sheet, cp *checkpoint.Checkpoint) []Instruction {
	units := sheet.Units()
	plan := make([]Instruction, 0, len(units))

	skipping := cp != nil && cp.Sheet == sheet.Name && cp.Subcategory != ""

	var cpBrandIdx int
	if skipping {
		cpBrandIdx = brandIndex(sheet.Brands[cp.Subcategory], cp.Brand)
	}

	for _, unit := range units {
		ins := Instruction{Unit: unit}

		if skipping {
			switch {
			case unit.Subcategory != cp.Subcategory:
				ins.Skip = true
			case cpBrandIdx < 0:
				// Checkpoint brand no longer in the list; run the
				// subcategory fresh from here on
				skipping = false
			case brandIndex(sheet.Brands[unit.Subcategory], unit.Brand) < cpBrandIdx:
				ins.Skip = true
			case unit.Brand == cp.Brand:
				ins.Resume = &Resumption{Start: cp.Start, PageNum: cp.PageNum}
				skipping = false
			default:
				// Brand after the checkpoint brand; runs fresh
				skipping = false
			}
		}

		plan = append(plan, ins)
	}

	return plan
}

func brandIndex(brands []string, brand string) int {
	for i, b := range brands {
		if b == brand {
			return i
		}
	}
	return -1
}
