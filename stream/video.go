package stream

import (
	"fmt"

	"gocv.io/x/gocv"
)

// VideoSource reads frames from a video file through gocv.  The Mat
// returned by Next is a scratch buffer owned by the source and is only
// valid until the next pull or Close
type VideoSource struct {
	cap   *gocv.VideoCapture
	frame gocv.Mat
}

// OpenVideo opens a handle to read the frames of the given video file.
// The caller must Close the source on all exit paths to release the
// decoder handle
func OpenVideo(file string) (*VideoSource, error) {

	cap, err := gocv.VideoCaptureFile(file)

	if err != nil {
		return nil, fmt.Errorf("error opening video file: %w", err)
	}

	return &VideoSource{
		cap:   cap,
		frame: gocv.NewMat(),
	}, nil
}

// Next reads the next frame from the video, skipping any empty frames the
// decoder produces.  It reports false once the last frame has been read
func (v *VideoSource) Next() (gocv.Mat, bool) {

	for {
		// read the next frame from the video
		if ok := v.cap.Read(&v.frame); !ok {
			// reached last video frame
			return gocv.Mat{}, false
		}

		if v.frame.Empty() {
			continue
		}

		return v.frame, true
	}
}

// Close releases the video capture handle and the frame buffer
func (v *VideoSource) Close() error {

	err := v.cap.Close()
	v.frame.Close()

	return err
}

// ImageSource presents a single still image as a one-frame stream
type ImageSource struct {
	img  gocv.Mat
	done bool
}

// OpenImage reads the given image file into a one-frame source.  The
// caller must Close the source to release the image
func OpenImage(file string) (*ImageSource, error) {

	img := gocv.IMRead(file, gocv.IMReadColor)

	if img.Empty() {
		return nil, fmt.Errorf("error reading image from: %s", file)
	}

	return &ImageSource{img: img}, nil
}

// Next returns the image on the first pull and reports false afterwards
func (i *ImageSource) Next() (gocv.Mat, bool) {

	if i.done {
		return gocv.Mat{}, false
	}

	i.done = true

	return i.img, true
}

// Close releases the image
func (i *ImageSource) Close() error {
	i.img.Close()
	return nil
}
