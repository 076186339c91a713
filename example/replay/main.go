/*
Example demonstrating live inventory counting over a video stream.

The external detector and tracker are replayed from a recorded detection
event file, one line per tracked object per frame in the format:

	frame,sku_code,track_id,confidence[,left,top,right,bottom]

Such a file can be exported from any detection and tracking pipeline.  The
video is streamed to the browser as MJPEG with bounding boxes and the
running inventory counts drawn on each frame, and the aggregated summary
is logged once the video finishes.
*/
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/storevision/go-inventory"
	"github.com/storevision/go-inventory/stream"
	"github.com/storevision/go-inventory/tally"
	"gocv.io/x/gocv"
)

var (
	// FPS is the playback rate to simulate
	FPS         = 30
	FPSinterval = time.Duration(float64(time.Second) / float64(FPS))

	clrBox   = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	clrText  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	clrStats = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// box holds the optional bounding box replayed alongside a detection
// event, used only for drawing
type box struct {
	left, top, right, bottom int
	ok                       bool
}

// frameEvents holds one frame's replayed detections and their boxes
type frameEvents struct {
	dets  []inventory.Detection
	boxes []box
}

// replayDetector implements inventory.Detector by playing back recorded
// detection events, advancing one frame per Detect call
type replayDetector struct {
	frames  map[int]*frameEvents
	current int
	// last holds the boxes for the most recent frame for annotation
	last *frameEvents
}

// Detect returns the recorded detection events for the next frame
func (r *replayDetector) Detect(frame gocv.Mat) ([]inventory.Detection, error) {

	events := r.frames[r.current]
	r.current++
	r.last = events

	if events == nil {
		return nil, nil
	}

	return events.dets, nil
}

// Reset rewinds the replay to the first frame
func (r *replayDetector) Reset() {
	r.current = 0
	r.last = nil
}

// loadEvents reads a recorded detection event file
func loadEvents(file string) (map[int]*frameEvents, error) {

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

	frames := make(map[int]*frameEvents)

	for i, row := range rows {

		// skip an optional header row
		if i == 0 && len(row) > 0 && row[0] == "frame" {
			continue
		}

		if len(row) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 fields, got %d",
				i+1, len(row))
		}

		frameNum, err := strconv.Atoi(row[0])

		if err != nil {
			return nil, fmt.Errorf("line %d: bad frame number: %w", i+1, err)
		}

		trackID, err := strconv.ParseInt(row[2], 10, 64)

		if err != nil {
			return nil, fmt.Errorf("line %d: bad track id: %w", i+1, err)
		}

		conf, err := strconv.ParseFloat(row[3], 32)

		if err != nil {
			return nil, fmt.Errorf("line %d: bad confidence: %w", i+1, err)
		}

		events := frames[frameNum]

		if events == nil {
			events = &frameEvents{}
			frames[frameNum] = events
		}

		events.dets = append(events.dets, inventory.Detection{
			SKU:        strings.TrimSpace(row[1]),
			TrackID:    trackID,
			Confidence: float32(conf),
		})

		b := box{}

		if len(row) >= 8 {
			b.left, _ = strconv.Atoi(row[4])
			b.top, _ = strconv.Atoi(row[5])
			b.right, _ = strconv.Atoi(row[6])
			b.bottom, _ = strconv.Atoi(row[7])
			b.ok = true
		}

		events.boxes = append(events.boxes, b)
	}

	return frames, nil
}

// loadCatalog loads the labelling catalog, picking the loader from the
// file extension.  No catalog file at all is allowed, labels then degrade
// to raw SKU codes
func loadCatalog(file string) (inventory.Catalog, error) {

	if file == "" {
		return nil, nil
	}

	if strings.EqualFold(filepath.Ext(file), ".xlsx") {
		return inventory.LoadCatalogXLSX(file, "")
	}

	return inventory.LoadCatalog(file)
}

// Demo is a streaming HTTP server showing video with replayed detections
// and live inventory counts.  It serves one viewer at a time, the store
// and replay cursor belong to the active stream
type Demo struct {
	vidFile  string
	detector *replayDetector
	catalog  inventory.Catalog
	groupKey tally.GroupKey
	store    *tally.Store
}

// Stream is the HTTP handler streaming annotated video frames to the
// browser, then logging the aggregated summary when the video ends
func (d *Demo) Stream(w http.ResponseWriter, r *http.Request) {

	log.Printf("New client connection established\n")

	src, err := stream.OpenVideo(d.vidFile)

	if err != nil {
		log.Printf("Error opening video: %v", err)
		http.Error(w, "error opening video", http.StatusInternalServerError)
		return
	}

	defer src.Close()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	// fresh pass over the recorded events, New resets the store
	d.detector.Reset()
	s := stream.New(d.store, d.detector, src)

	resImg := gocv.NewMat()
	defer resImg.Close()

	ticker := time.NewTicker(FPSinterval)
	defer ticker.Stop()

	frameNum := 0

loop:
	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected\n")
			return

		case <-ticker.C:

			res, ok := s.Next()

			if !ok {
				// reached last video frame
				break loop
			}

			if res.Err != nil {
				// skip the frame, the store was left untouched
				log.Printf("Error on frame %d: %v", frameNum, res.Err)
				continue
			}

			// copy the source frame and annotate the copy
			res.Frame.CopyTo(&resImg)
			d.annotate(resImg, res.Live, frameNum)

			buf, err := gocv.IMEncode(".jpg", resImg)

			if err != nil {
				log.Printf("Error encoding frame: %v", err)
				continue
			}

			w.Write([]byte("--frame\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write(buf.GetBytes())
			w.Write([]byte("\r\n"))

			buf.Close()

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

			frameNum++
		}
	}

	d.logSummary()
}

// annotate draws the replayed bounding boxes and the running inventory
// counts onto the frame
func (d *Demo) annotate(img gocv.Mat, live map[string]int, frameNum int) {

	events := d.detector.last

	if events != nil {
		for i, det := range events.dets {

			b := events.boxes[i]

			if !b.ok {
				continue
			}

			text := fmt.Sprintf("#%d %s %.1f%%", det.TrackID,
				d.groupKey.Label(det.SKU, d.catalog), det.Confidence*100)

			rect := image.Rect(b.left, b.top, b.right, b.bottom)
			gocv.Rectangle(&img, rect, clrBox, 2)
			gocv.PutText(&img, text, image.Pt(b.left, b.top+12),
				gocv.FontHersheyDuplex, 0.4, clrText, 1)
		}
	}

	// frame number and running counts at the top of the image
	gocv.PutText(&img, fmt.Sprintf("Frame: %d", frameNum),
		image.Pt(4, 14), gocv.FontHersheyDuplex, 0.5, clrStats, 1)

	// stable ordering for the count lines
	skus := make([]string, 0, len(live))

	for sku := range live {
		skus = append(skus, sku)
	}

	sort.Strings(skus)

	y := 30

	for _, sku := range skus {
		gocv.PutText(&img, fmt.Sprintf("%s: %d", d.groupKey.Label(sku, d.catalog), live[sku]),
			image.Pt(4, y), gocv.FontHersheyDuplex, 0.5, clrStats, 1)
		y += 16
	}
}

// logSummary writes the aggregated report for the finished stream to the
// log
func (d *Demo) logSummary() {

	records := tally.Summarize(d.store, d.groupKey, d.catalog)

	if len(records) == 0 {
		log.Printf("No items detected\n")
		return
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\tcount\tconfidence(%%)\tframe_presence(%%)\n", d.groupKey)

	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", rec.Label, rec.Count,
			rec.MeanConfidence, rec.FramePresence)
	}

	tw.Flush()
	log.Printf("Stream summary:\n%s", sb.String())
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	vidFile := flag.String("v", "../data/shelf.mp4", "Video file to replay")
	eventFile := flag.String("d", "../data/shelf-events.csv", "Recorded detection event file")
	catalogFile := flag.String("c", "../data/labelling-catalog.csv", "Labelling catalog file (.csv or .xlsx), empty for none")
	groupMode := flag.String("g", "item_name", "Grouping key for labels and summary: sku_code, item_name, category, sub_category, or brand")
	httpAddr := flag.String("a", "localhost:8080", "HTTP Address to run server on, format address:port")

	flag.Parse()

	// validate the grouping key before any frame is processed
	groupKey, err := tally.ParseGroupKey(*groupMode)

	if err != nil {
		log.Fatalf("Error in configuration: %v", err)
	}

	frames, err := loadEvents(*eventFile)

	if err != nil {
		log.Fatalf("Error loading detection events: %v", err)
	}

	catalog, err := loadCatalog(*catalogFile)

	if err != nil {
		log.Fatalf("Error loading catalog: %v", err)
	}

	demo := &Demo{
		vidFile:  *vidFile,
		detector: &replayDetector{frames: frames},
		catalog:  catalog,
		groupKey: groupKey,
		store:    tally.NewStore(),
	}

	http.HandleFunc("/stream", demo.Stream)

	// start http server
	log.Println(fmt.Sprintf("Open browser and view video at http://%s/stream",
		*httpAddr))
	log.Fatal(http.ListenAndServe(*httpAddr, nil))
}
