package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/timmy/nercompare/internal/compare"
)

// IsSpreadsheet reports whether path should be written as XLSX.
func IsSpreadsheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// WriteResult writes an entity comparison as JSON or, for .xlsx paths, as
// a spreadsheet with one row per entity.
func WriteResult(path string, r compare.Result) error {
	if !IsSpreadsheet(path) {
		return WriteJSON(path, r)
	}

	rows := make([][]interface{}, 0, len(r.Entities))
	for _, e := range r.Entities {
		var conf interface{} = compare.NotAvailable
		if v, ok := e.Confidence.Float64(); ok {
			conf = v
		}
		rows = append(rows, []interface{}{e.Name, e.Value, string(e.Comparison), conf})
	}
	return writeSheet(path, "Comparison", []string{"Entity Name", "Entity Value", "Comparison", "Confidence"}, rows)
}

// WriteCategoryResult writes a category comparison as JSON or XLSX.
func WriteCategoryResult(path string, r compare.CategoryResult) error {
	if !IsSpreadsheet(path) {
		return WriteJSON(path, r)
	}

	categories := make([]string, 0, len(r))
	for c := range r {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var rows [][]interface{}
	for _, c := range categories {
		items := make([]string, 0, len(r[c]))
		for item := range r[c] {
			items = append(items, item)
		}
		sort.Strings(items)
		for _, item := range items {
			rows = append(rows, []interface{}{c, item, string(r[c][item])})
		}
	}
	return writeSheet(path, "Categories", []string{"Category", "Item", "Comparison"}, rows)
}

func writeSheet(path, sheet string, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 28)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
