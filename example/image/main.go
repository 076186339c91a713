/*
Example demonstrating inventory counting on a single image.

Detection events for the image are read from a recorded event file in the
same format the replay example uses (the frame column is ignored for a
still image).  The annotated image is written out as a JPEG and the
aggregated summary is printed as a table.
*/
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/storevision/go-inventory"
	"github.com/storevision/go-inventory/stream"
	"github.com/storevision/go-inventory/tally"
	"gocv.io/x/gocv"
)

var (
	clrBox  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	clrText = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// event is one detection event plus its optional bounding box for drawing
type event struct {
	det                      inventory.Detection
	left, top, right, bottom int
	hasBox                   bool
}

// stillDetector implements inventory.Detector returning one fixed set of
// detection events for the single frame
type stillDetector struct {
	events []event
}

func (d *stillDetector) Detect(frame gocv.Mat) ([]inventory.Detection, error) {

	dets := make([]inventory.Detection, 0, len(d.events))

	for _, ev := range d.events {
		dets = append(dets, ev.det)
	}

	return dets, nil
}

// loadEvents reads the recorded detection event file, ignoring the frame
// column
func loadEvents(file string) ([]event, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()

	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	var events []event

	for i, row := range rows {

		// skip an optional header row
		if i == 0 && len(row) > 0 && row[0] == "frame" {
			continue
		}

		if len(row) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 fields, got %d",
				i+1, len(row))
		}

		trackID, err := strconv.ParseInt(row[2], 10, 64)

		if err != nil {
			return nil, fmt.Errorf("line %d: bad track id: %w", i+1, err)
		}

		conf, err := strconv.ParseFloat(row[3], 32)

		if err != nil {
			return nil, fmt.Errorf("line %d: bad confidence: %w", i+1, err)
		}

		ev := event{
			det: inventory.Detection{
				SKU:        strings.TrimSpace(row[1]),
				TrackID:    trackID,
				Confidence: float32(conf),
			},
		}

		if len(row) >= 8 {
			ev.left, _ = strconv.Atoi(row[4])
			ev.top, _ = strconv.Atoi(row[5])
			ev.right, _ = strconv.Atoi(row[6])
			ev.bottom, _ = strconv.Atoi(row[7])
			ev.hasBox = true
		}

		events = append(events, ev)
	}

	return events, nil
}

// loadCatalog loads the labelling catalog, picking the loader from the
// file extension
func loadCatalog(file string) (inventory.Catalog, error) {

	if file == "" {
		return nil, nil
	}

	if strings.EqualFold(filepath.Ext(file), ".xlsx") {
		return inventory.LoadCatalogXLSX(file, "")
	}

	return inventory.LoadCatalog(file)
}

// annotate draws the detection boxes and labels onto the image
func annotate(img gocv.Mat, events []event, groupKey tally.GroupKey,
	catalog inventory.Catalog) {

	for _, ev := range events {

		if !ev.hasBox {
			continue
		}

		text := fmt.Sprintf("#%d %s %.1f%%", ev.det.TrackID,
			groupKey.Label(ev.det.SKU, catalog), ev.det.Confidence*100)

		rect := image.Rect(ev.left, ev.top, ev.right, ev.bottom)
		gocv.Rectangle(&img, rect, clrBox, 2)
		gocv.PutText(&img, text, image.Pt(ev.left, ev.top+12),
			gocv.FontHersheyDuplex, 0.4, clrText, 1)
	}
}

// printSummary writes the aggregated report as a table to stdout
func printSummary(store *tally.Store, groupKey tally.GroupKey,
	catalog inventory.Catalog) {

	records := tally.Summarize(store, groupKey, catalog)

	if len(records) == 0 {
		fmt.Println("No items detected")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\tcount\tconfidence(%%)\tframe_presence(%%)\n", groupKey)

	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", rec.Label, rec.Count,
			rec.MeanConfidence, rec.FramePresence)
	}

	tw.Flush()
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	imgFile := flag.String("i", "../data/shelf.jpg", "Image file to process")
	eventFile := flag.String("d", "../data/shelf-events.csv", "Recorded detection event file")
	catalogFile := flag.String("c", "../data/labelling-catalog.csv", "Labelling catalog file (.csv or .xlsx), empty for none")
	groupMode := flag.String("g", "item_name", "Grouping key for labels and summary: sku_code, item_name, category, sub_category, or brand")
	outFile := flag.String("o", "out.jpg", "File to write the annotated image to")

	flag.Parse()

	// validate the grouping key before processing
	groupKey, err := tally.ParseGroupKey(*groupMode)

	if err != nil {
		log.Fatalf("Error in configuration: %v", err)
	}

	events, err := loadEvents(*eventFile)

	if err != nil {
		log.Fatalf("Error loading detection events: %v", err)
	}

	catalog, err := loadCatalog(*catalogFile)

	if err != nil {
		log.Fatalf("Error loading catalog: %v", err)
	}

	src, err := stream.OpenImage(*imgFile)

	if err != nil {
		log.Fatalf("Error opening image: %v", err)
	}

	defer src.Close()

	// a still image is a one frame stream
	store := tally.NewStore()
	s := stream.New(store, &stillDetector{events: events}, src)

	res, ok := s.Next()

	if !ok {
		log.Fatal("Error reading frame from image source")
	}

	if res.Err != nil {
		log.Fatalf("Error detecting objects: %v", res.Err)
	}

	annotated := gocv.NewMat()
	defer annotated.Close()

	res.Frame.CopyTo(&annotated)
	annotate(annotated, events, groupKey, catalog)

	if ok := gocv.IMWrite(*outFile, annotated); !ok {
		log.Fatalf("Error writing annotated image to: %s", *outFile)
	}

	log.Printf("Annotated image written to %s\n", *outFile)

	printSummary(store, groupKey, catalog)
}
