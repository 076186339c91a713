package tally

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/storevision/go-inventory"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidGroupKey is returned by ParseGroupKey for a grouping key that
// is not part of the catalog attribute enumeration
var ErrInvalidGroupKey = errors.New("invalid grouping key")

// GroupKey selects the catalog attribute used to group and label summary
// records
type GroupKey int

const (
	// GroupBySKU labels records with the raw SKU code, no grouping occurs
	GroupBySKU GroupKey = iota
	// GroupByItemName groups records by the catalog item name
	GroupByItemName
	// GroupByCategory groups records by the catalog category
	GroupByCategory
	// GroupBySubCategory groups records by the catalog sub category
	GroupBySubCategory
	// GroupByBrand groups records by the catalog brand
	GroupByBrand
)

// groupKeyNames maps the external configuration spelling of each grouping
// key to its enumeration value
var groupKeyNames = map[string]GroupKey{
	"sku_code":     GroupBySKU,
	"item_name":    GroupByItemName,
	"category":     GroupByCategory,
	"sub_category": GroupBySubCategory,
	"brand":        GroupByBrand,
}

// ParseGroupKey validates a grouping key given as configuration input.
// Unknown keys are rejected up front, before any frame is processed,
// rather than silently falling back and producing misleading aggregates
func ParseGroupKey(s string) (GroupKey, error) {

	key, ok := groupKeyNames[s]

	if !ok {
		return 0, fmt.Errorf("%w %q, valid keys are: sku_code, item_name, "+
			"category, sub_category, brand", ErrInvalidGroupKey, s)
	}

	return key, nil
}

// String returns the configuration spelling of the grouping key
func (k GroupKey) String() string {

	for name, key := range groupKeyNames {
		if key == k {
			return name
		}
	}

	return fmt.Sprintf("GroupKey(%d)", int(k))
}

// Label resolves the display label for a SKU code under this grouping
// key.  A missing catalog entry or an empty attribute degrades to the raw
// SKU code, it never fails
func (k GroupKey) Label(sku string, catalog inventory.Catalog) string {

	if k == GroupBySKU {
		return sku
	}

	entry, ok := catalog.Lookup(sku)

	if !ok {
		return sku
	}

	var attr string

	switch k {
	case GroupByItemName:
		attr = entry.ItemName
	case GroupByCategory:
		attr = entry.Category
	case GroupBySubCategory:
		attr = entry.SubCategory
	case GroupByBrand:
		attr = entry.Brand
	}

	if attr == "" {
		return sku
	}

	return attr
}

// Record is one row of the aggregated summary report
type Record struct {
	// Label is the group label resolved through the catalog
	Label string
	// Count is the number of unique objects counted under this label
	Count int
	// MeanConfidence is the mean detection confidence as a whole
	// percentage
	MeanConfidence int
	// FramePresence is the number of first-time appearances relative to
	// total frames observed, as a whole percentage
	FramePresence int
}

// Summarize produces the aggregated report for everything the store has
// accumulated so far.  It may be called at any time during processing,
// the store is only read.  A store that has observed no frames yields an
// empty report.
//
// When the grouping key is not GroupBySKU, several SKU codes may resolve
// to the same label, for example multiple SKUs sharing one brand.  Such
// rows collapse into one record: counts are summed while the percentage
// columns are re-averaged as the plain mean of the per-SKU percentages,
// unweighted by count.  Records are sorted by label
func Summarize(s *Store, key GroupKey, catalog inventory.Catalog) []Record {

	if s.FrameCount() == 0 {
		return nil
	}

	// per-SKU rows with percentages already rounded
	rows := make([]Record, 0)

	for _, sku := range s.SKUs() {

		samples := s.Confidences(sku)

		rows = append(rows, Record{
			Label:          key.Label(sku, catalog),
			Count:          s.UniqueCount(sku),
			MeanConfidence: roundPercent(stat.Mean(samples, nil)),
			FramePresence: roundPercent(float64(s.Appearances(sku)) /
				float64(s.FrameCount())),
		})
	}

	if key != GroupBySKU {
		rows = collapse(rows)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Label < rows[j].Label
	})

	return rows
}

// collapse merges rows sharing a label into a single record, summing
// counts and taking the unweighted mean of the per-SKU percentages
func collapse(rows []Record) []Record {

	type group struct {
		count       int
		confidences []float64
		presences   []float64
	}

	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, row := range rows {

		g, ok := groups[row.Label]

		if !ok {
			g = &group{}
			groups[row.Label] = g
			order = append(order, row.Label)
		}

		g.count += row.Count
		g.confidences = append(g.confidences, float64(row.MeanConfidence))
		g.presences = append(g.presences, float64(row.FramePresence))
	}

	merged := make([]Record, 0, len(order))

	for _, label := range order {

		g := groups[label]

		merged = append(merged, Record{
			Label:          label,
			Count:          g.count,
			MeanConfidence: int(math.Round(stat.Mean(g.confidences, nil))),
			FramePresence:  int(math.Round(stat.Mean(g.presences, nil))),
		})
	}

	return merged
}

// roundPercent converts a [0,1] ratio to a whole percentage, rounding
// half away from zero
func roundPercent(ratio float64) int {
	return int(math.Round(ratio * 100))
}
