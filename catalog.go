package inventory

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CatalogEntry holds the descriptive attributes recorded for a single SKU
// code in the labelling catalog
type CatalogEntry struct {
	ItemName    string
	Category    string
	SubCategory string
	Brand       string
}

// Catalog maps a SKU code to its catalog entry.  It is loaded once at
// startup and treated as read-only reference data for the life of the
// process
type Catalog map[string]CatalogEntry

// Lookup returns the catalog entry for the given SKU code.  A missing
// entry is not an error, callers degrade to using the raw SKU code as
// the display label
func (c Catalog) Lookup(sku string) (CatalogEntry, bool) {
	entry, ok := c[sku]
	return entry, ok
}

// LoadCatalog reads the labelling catalog from the given CSV file.  The
// first row must be a header containing at least a sku_code column, the
// attribute columns (item_name, category, sub_category, brand) may appear
// in any order and any of them may be omitted
func LoadCatalog(file string) (Catalog, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()

	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return catalogFromRows(rows)
}

// LoadCatalogXLSX reads the labelling catalog from the given Excel
// workbook.  An empty sheet name selects the first sheet in the workbook.
// The expected layout is the same as LoadCatalog, a header row followed
// by one row per SKU code
func LoadCatalogXLSX(file, sheet string) (Catalog, error) {

	wb, err := excelize.OpenFile(file)

	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}

	defer wb.Close()

	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}

	rows, err := wb.GetRows(sheet)

	if err != nil {
		return nil, fmt.Errorf("error reading sheet %s: %w", sheet, err)
	}

	return catalogFromRows(rows)
}

// catalogFromRows builds a Catalog from a header row followed by data
// rows.  Cells are trimmed, rows with an empty SKU code are skipped
func catalogFromRows(rows [][]string) (Catalog, error) {

	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	// map column names to their positions
	cols := make(map[string]int)

	for i, name := range rows[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}

	skuCol, ok := cols["sku_code"]

	if !ok {
		return nil, fmt.Errorf("catalog header is missing the sku_code column")
	}

	// cell returns the trimmed cell under the named column, or an empty
	// string when the column is absent or the row is short
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	catalog := make(Catalog)

	for _, row := range rows[1:] {

		if skuCol >= len(row) {
			continue
		}

		sku := strings.TrimSpace(row[skuCol])

		if sku == "" {
			continue
		}

		catalog[sku] = CatalogEntry{
			ItemName:    cell(row, "item_name"),
			Category:    cell(row, "category"),
			SubCategory: cell(row, "sub_category"),
			Brand:       cell(row, "brand"),
		}
	}

	return catalog, nil
}
