package inventory

import "gocv.io/x/gocv"

// Detection is a single tracked object reported by the external detection
// and tracking model for one frame
type Detection struct {
	// SKU is the raw class label the model was trained on, used as the
	// primary key into the Catalog
	SKU string
	// TrackID is the identity assigned to this object by the external
	// tracker.  It is stable across frames for the same physical object
	// within one stream, but not across stream resets
	TrackID int64
	// Confidence is the detection confidence score in the range [0,1]
	Confidence float32
}

// Detector is the boundary to the external detection and tracking model.
// Implementations run inference and tracking on the given frame and return
// the already thresholded, already tracked detection events
type Detector interface {
	Detect(frame gocv.Mat) ([]Detection, error)
}
