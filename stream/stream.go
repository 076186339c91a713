// Package stream drives a detection stream frame by frame, feeding the
// external detector's events into a tally.Store and yielding each frame
// paired with the running live summary.
package stream

import (
	"fmt"

	"github.com/storevision/go-inventory"
	"github.com/storevision/go-inventory/tally"
	"gocv.io/x/gocv"
)

// Source supplies a lazy sequence of frames, one per pull.  Next reports
// false once the sequence is exhausted, which ends the stream
type Source interface {
	Next() (gocv.Mat, bool)
}

// Result pairs one frame with the live summary taken after that frame was
// tallied.  A detector failure for the frame is carried in Err, in which
// case the store was left untouched and Live is nil, the caller decides
// whether to skip the frame or stop pulling
type Result struct {
	Frame gocv.Mat
	Live  map[string]int
	Err   error
}

// Stream is a pull-based driver over one frame source.  It advances one
// frame per Next call and is not restartable, build a new Stream for a
// new pass over a source
type Stream struct {
	store *tally.Store
	det   inventory.Detector
	src   Source
}

// New returns a Stream processing frames from src through det into store.
// The store is reset so counts always start from a clean slate
func New(store *tally.Store, det inventory.Detector, src Source) *Stream {

	store.Reset()

	return &Stream{
		store: store,
		det:   det,
		src:   src,
	}
}

// Next pulls the next frame, runs detection on it and applies the track
// deduplication.  It reports false once the source is exhausted.
// Cancellation is the caller's, simply stop pulling
func (s *Stream) Next() (Result, bool) {

	frame, ok := s.src.Next()

	if !ok {
		return Result{}, false
	}

	dets, err := s.det.Detect(frame)

	if err != nil {
		return Result{
			Frame: frame,
			Err:   fmt.Errorf("detector failed: %w", err),
		}, true
	}

	return Result{
		Frame: frame,
		Live:  s.store.AddFrame(dets),
	}, true
}
