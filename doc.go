/*
go-inventory aggregates the per-object detections produced by an external
object detection and tracking model into de-duplicated inventory counts
over a stream of frames (a single image or a video).

The library does not run model inference or object tracking itself.  It
consumes already tracked detection events through the Detector interface,
deduplicates them by persistent track identity, accumulates per-SKU
presence statistics across the whole stream, and can produce a consistent
summary at any point during processing, grouped and relabelled through a
reference catalog.

See example code and usage in the example subdirectory.
*/
package inventory
