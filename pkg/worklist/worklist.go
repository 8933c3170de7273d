// Package worklist reads the crawl work list from an Excel workbook. Each
// sheet carries one category with Category / SubCategories / Brand columns;
// row order defines the crawl and resume order.
package worklist

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Unit is one (category, subcategory, brand) combination to crawl
type Unit struct {
	Category    string
	Subcategory string
	Brand       string
	Row         int // workbook row number, for reporting
}

// Sheet is the parsed, ordered work list of one workbook sheet
type Sheet struct {
	Name          string
	Category      string
	Subcategories []string            // order of first appearance
	Brands        map[string][]string // subcategory -> ordered brands
	rows          map[string]int      // "subcategory\x00brand" -> row number
}

// Units flattens the sheet into crawl order
func (s *Sheet) Units() []Unit {
	var units []Unit
	for _, sub := range s.Subcategories {
		for _, brand := range s.Brands[sub] {
			units = append(units, Unit{
				Category:    s.Category,
				Subcategory: sub,
				Brand:       brand,
				Row:         s.RowOf(sub, brand),
			})
		}
	}
	return units
}

// RowOf returns the workbook row number of a (subcategory, brand) pair,
// or 0 when unknown
func (s *Sheet) RowOf(subcategory, brand string) int {
	return s.rows[rowKey(subcategory, brand)]
}

func rowKey(subcategory, brand string) string {
	return subcategory + "\x00" + brand
}

// Workbook wraps an open Excel work-list file
type Workbook struct {
	file *excelize.File
}

// Open opens a work-list workbook
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{file: f}, nil
}

// Close releases the underlying file
func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetNames returns the workbook's sheets in order
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Column headers expected in each sheet
const (
	headerCategory    = "Category"
	headerSubcategory = "SubCategories"
	headerBrand       = "Brand"
)

// Load parses one sheet into an ordered work list. The category is taken
// from the first data row; repeated (subcategory, brand) pairs keep their
// first row number.
func (w *Workbook) Load(sheetName string) (*Sheet, error) {
	rows, err := w.file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s is empty", sheetName)
	}

	catCol, subCol, brandCol := -1, -1, -1
	for i, header := range rows[0] {
		switch strings.TrimSpace(header) {
		case headerCategory:
			catCol = i
		case headerSubcategory:
			subCol = i
		case headerBrand:
			brandCol = i
		}
	}
	if catCol < 0 || subCol < 0 || brandCol < 0 {
		return nil, fmt.Errorf("sheet %s is missing required columns (%s, %s, %s)",
			sheetName, headerCategory, headerSubcategory, headerBrand)
	}

	sheet := &Sheet{
		Name:   sheetName,
		Brands: make(map[string][]string),
		rows:   make(map[string]int),
	}

	for idx, row := range rows[1:] {
		sub := cell(row, subCol)
		brand := cell(row, brandCol)
		if sub == "" || brand == "" {
			continue
		}

		if sheet.Category == "" {
			sheet.Category = cell(row, catCol)
		}

		if _, known := sheet.Brands[sub]; !known {
			sheet.Subcategories = append(sheet.Subcategories, sub)
		}
		if !contains(sheet.Brands[sub], brand) {
			sheet.Brands[sub] = append(sheet.Brands[sub], brand)
		}

		key := rowKey(sub, brand)
		if _, seen := sheet.rows[key]; !seen {
			sheet.rows[key] = idx + 2 // 1-based rows plus header
		}
	}

	if sheet.Category == "" {
		return nil, fmt.Errorf("sheet %s has no usable rows", sheetName)
	}

	return sheet, nil
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
