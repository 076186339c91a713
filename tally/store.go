package tally

import (
	"math"
	"sort"

	"github.com/storevision/go-inventory"
)

// Store accumulates de-duplicated detection statistics across one stream
// of frames.  For every SKU it records the set of track identities seen,
// the number of first-time appearances, and one confidence sample per
// unique track identity, together with the total number of frames
// observed since the last Reset.
//
// A Store is owned by a single stream driver, all mutation happens in
// place through AddFrame and no internal locking is provided.  Callers
// wanting to read summaries from another goroutine while frames are being
// processed must impose their own synchronization
type Store struct {
	// frameCount is the total number of frames observed since last reset
	frameCount int
	// trackIDs records the unique track identities seen per SKU
	trackIDs map[string]map[int64]struct{}
	// appearances counts first-time track appearances per SKU, in
	// lockstep with trackIDs growth
	appearances map[string]int
	// confidences holds one confidence sample per unique track identity,
	// appended when the track is first recorded
	confidences map[string][]float64
}

// NewStore returns an empty Store ready to accumulate a new stream
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset clears all accumulated state for a new image or video stream.
// It is also required after any configuration change, such as switching
// detection model, that invalidates prior counts
func (s *Store) Reset() {
	s.frameCount = 0
	s.trackIDs = make(map[string]map[int64]struct{})
	s.appearances = make(map[string]int)
	s.confidences = make(map[string][]float64)
}

// AddFrame consumes one frame's detection events and updates the store.
// An event whose (SKU, track identity) pair has been seen before is a
// repeat sighting and is ignored.  A new pair registers the track
// identity, increments the SKU's appearance count and records the event's
// confidence.  The frame counter always advances by exactly one, frames
// with zero detections included.
//
// The returned live summary maps each SKU with at least one tracked
// object to its current unique count.  It is a freshly allocated snapshot
// and never aliases the store's internal state
func (s *Store) AddFrame(dets []inventory.Detection) map[string]int {

	for _, det := range dets {

		ids, ok := s.trackIDs[det.SKU]

		if !ok {
			ids = make(map[int64]struct{})
			s.trackIDs[det.SKU] = ids
		}

		// repeat sighting of a known track
		if _, seen := ids[det.TrackID]; seen {
			continue
		}

		ids[det.TrackID] = struct{}{}
		s.appearances[det.SKU]++
		s.confidences[det.SKU] = append(s.confidences[det.SKU],
			clampConfidence(det.Confidence))
	}

	s.frameCount++

	return s.Live()
}

// Live returns the current live summary, a snapshot mapping each SKU with
// a non-empty track set to its unique object count
func (s *Store) Live() map[string]int {

	live := make(map[string]int)

	for sku, ids := range s.trackIDs {
		if len(ids) > 0 {
			live[sku] = len(ids)
		}
	}

	return live
}

// FrameCount returns the number of frames observed since the last Reset
func (s *Store) FrameCount() int {
	return s.frameCount
}

// UniqueCount returns the number of unique track identities recorded for
// the given SKU
func (s *Store) UniqueCount(sku string) int {
	return len(s.trackIDs[sku])
}

// Appearances returns the number of first-time track appearances recorded
// for the given SKU
func (s *Store) Appearances(sku string) int {
	return s.appearances[sku]
}

// Confidences returns a copy of the confidence samples recorded for the
// given SKU, in the order the unique tracks were first seen
func (s *Store) Confidences(sku string) []float64 {

	samples := s.confidences[sku]

	if len(samples) == 0 {
		return nil
	}

	out := make([]float64, len(samples))
	copy(out, samples)

	return out
}

// SKUs returns the SKU codes with at least one recorded track, sorted for
// deterministic iteration
func (s *Store) SKUs() []string {

	skus := make([]string, 0, len(s.trackIDs))

	for sku, ids := range s.trackIDs {
		if len(ids) > 0 {
			skus = append(skus, sku)
		}
	}

	sort.Strings(skus)

	return skus
}

// clampConfidence maps a malformed confidence score onto the valid [0,1]
// range.  NaN and negative values degrade to 0 rather than aborting the
// stream for one corrupt event
func clampConfidence(conf float32) float64 {

	c := float64(conf)

	if math.IsNaN(c) || c < 0 {
		return 0
	}

	if c > 1 {
		return 1
	}

	return c
}
