package tally

import (
	"errors"
	"testing"

	"github.com/storevision/go-inventory"
)

// testCatalog returns a small synthetic catalog for summary tests
func testCatalog() inventory.Catalog {
	return inventory.Catalog{
		"sku_1": {
			ItemName:    "Cola 330ml",
			Category:    "Beverages",
			SubCategory: "Soft Drinks",
			Brand:       "BrandX",
		},
		"sku_2": {
			ItemName:    "Cola 1.5l",
			Category:    "Beverages",
			SubCategory: "Soft Drinks",
			Brand:       "BrandX",
		},
	}
}

// findRecord returns the record with the given label, failing the test if
// it is absent
func findRecord(t *testing.T, records []Record, label string) Record {
	t.Helper()

	for _, r := range records {
		if r.Label == label {
			return r
		}
	}

	t.Fatalf("no record with label %q in %v", label, records)
	return Record{}
}

// TestParseGroupKey checks config time validation of the grouping key
func TestParseGroupKey(t *testing.T) {

	valid := map[string]GroupKey{
		"sku_code":     GroupBySKU,
		"item_name":    GroupByItemName,
		"category":     GroupByCategory,
		"sub_category": GroupBySubCategory,
		"brand":        GroupByBrand,
	}

	for name, want := range valid {

		key, err := ParseGroupKey(name)

		if err != nil {
			t.Errorf("key %q: unexpected error: %v", name, err)
		}

		if key != want {
			t.Errorf("key %q: expected %v, got %v", name, want, key)
		}

		if key.String() != name {
			t.Errorf("key %q: String() returned %q", name, key.String())
		}
	}

	for _, name := range []string{"", "colour", "SKU_CODE", "item name"} {

		_, err := ParseGroupKey(name)

		if !errors.Is(err, ErrInvalidGroupKey) {
			t.Errorf("key %q: expected ErrInvalidGroupKey, got %v", name, err)
		}
	}
}

// TestSummarizeEmptyStore checks a store with no frames observed yields
// an empty report
func TestSummarizeEmptyStore(t *testing.T) {

	s := NewStore()

	if records := Summarize(s, GroupBySKU, testCatalog()); len(records) != 0 {
		t.Errorf("expected empty report, got %v", records)
	}
}

// TestSummarizeBySKU runs the three frame reference scenario and checks
// the per SKU report values
func TestSummarizeBySKU(t *testing.T) {

	s := NewStore()

	s.AddFrame([]inventory.Detection{
		{SKU: "sku_1", TrackID: 7, Confidence: 0.9},
	})
	s.AddFrame([]inventory.Detection{
		{SKU: "sku_1", TrackID: 7, Confidence: 0.85},
		{SKU: "sku_1", TrackID: 8, Confidence: 0.7},
	})
	s.AddFrame(nil)

	records := Summarize(s, GroupBySKU, testCatalog())

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]

	if r.Label != "sku_1" {
		t.Errorf("expected label sku_1, got %q", r.Label)
	}

	if r.Count != 2 {
		t.Errorf("expected count 2, got %d", r.Count)
	}

	// mean(0.9, 0.7) = 0.8
	if r.MeanConfidence != 80 {
		t.Errorf("expected mean confidence 80, got %d", r.MeanConfidence)
	}

	// 2 appearances over 3 frames
	if r.FramePresence != 67 {
		t.Errorf("expected frame presence 67, got %d", r.FramePresence)
	}
}

// TestSummarizeGroupCollapse checks SKUs sharing one brand collapse into
// a single record with summed counts and mean of means percentages
func TestSummarizeGroupCollapse(t *testing.T) {

	s := NewStore()

	s.AddFrame([]inventory.Detection{
		{SKU: "sku_1", TrackID: 1, Confidence: 0.8},
		{SKU: "sku_2", TrackID: 2, Confidence: 0.6},
	})

	records := Summarize(s, GroupByBrand, testCatalog())

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := findRecord(t, records, "BrandX")

	if r.Count != 2 {
		t.Errorf("expected count 2, got %d", r.Count)
	}

	// mean(80, 60) = 70
	if r.MeanConfidence != 70 {
		t.Errorf("expected mean confidence 70, got %d", r.MeanConfidence)
	}

	// mean(100, 100) = 100
	if r.FramePresence != 100 {
		t.Errorf("expected frame presence 100, got %d", r.FramePresence)
	}
}

// TestSummarizeMissingCatalogEntry checks a SKU absent from the catalog
// falls back to its raw code as the label
func TestSummarizeMissingCatalogEntry(t *testing.T) {

	s := NewStore()

	s.AddFrame([]inventory.Detection{
		{SKU: "sku_unknown", TrackID: 1, Confidence: 0.5},
	})

	records := Summarize(s, GroupByBrand, testCatalog())

	r := findRecord(t, records, "sku_unknown")

	if r.Count != 1 {
		t.Errorf("expected count 1, got %d", r.Count)
	}
}

// TestSummarizeEmptyAttribute checks a catalog entry with an empty
// grouping attribute falls back to the raw SKU code
func TestSummarizeEmptyAttribute(t *testing.T) {

	catalog := inventory.Catalog{
		"sku_3": {ItemName: "Unbranded Snack"},
	}

	s := NewStore()

	s.AddFrame([]inventory.Detection{
		{SKU: "sku_3", TrackID: 1, Confidence: 0.5},
	})

	records := Summarize(s, GroupByBrand, catalog)

	findRecord(t, records, "sku_3")
}

// TestSummarizeSorted checks records come back ordered by label
func TestSummarizeSorted(t *testing.T) {

	s := NewStore()

	s.AddFrame([]inventory.Detection{
		{SKU: "sku_9", TrackID: 1, Confidence: 0.5},
		{SKU: "sku_1", TrackID: 2, Confidence: 0.5},
		{SKU: "sku_5", TrackID: 3, Confidence: 0.5},
	})

	records := Summarize(s, GroupBySKU, nil)

	for i := 1; i < len(records); i++ {
		if records[i-1].Label > records[i].Label {
			t.Errorf("records not sorted by label: %q before %q",
				records[i-1].Label, records[i].Label)
		}
	}
}

// TestSummarizeMidStream checks the report stays consistent when taken
// between frames, the live query case
func TestSummarizeMidStream(t *testing.T) {

	s := NewStore()

	s.AddFrame([]inventory.Detection{
		{SKU: "sku_1", TrackID: 1, Confidence: 1.0},
	})

	records := Summarize(s, GroupBySKU, nil)

	if len(records) != 1 || records[0].FramePresence != 100 {
		t.Fatalf("mid stream report after 1 frame wrong: %v", records)
	}

	s.AddFrame(nil)

	records = Summarize(s, GroupBySKU, nil)

	// 1 appearance over 2 frames
	if records[0].FramePresence != 50 {
		t.Errorf("expected frame presence 50, got %d", records[0].FramePresence)
	}
}
