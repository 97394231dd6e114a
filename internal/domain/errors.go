package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the per-scene exclusion policies and run-level
// failures. Per-scene conditions exclude that scene and the run continues;
// run-level conditions abort before any raster is produced.
var (
	// ErrMissingCalibration marks a scene lacking scale/offset metadata
	// for a required band. The scene is excluded, the run continues.
	ErrMissingCalibration = errors.New("missing calibration")

	// ErrGeometryMismatch marks a scene whose bands do not share the
	// normalized grid geometry. The scene is excluded, the run continues.
	ErrGeometryMismatch = errors.New("geometry mismatch")

	// ErrEmptyIntersection marks a scene that does not overlap the region
	// of interest. Not an error to surface: the scene simply contributes
	// no observations, which is distinct from contributing zero fog.
	ErrEmptyIntersection = errors.New("empty intersection with region")

	// ErrEmptyWindow means the catalog returned zero scenes for the
	// requested window and region. Fatal before aggregation.
	ErrEmptyWindow = errors.New("no imagery for requested window")

	// ErrNoValidImages means every fetched scene was excluded, so no
	// observation backs the output. Fatal, equivalent to an empty window.
	ErrNoValidImages = errors.New("no valid imagery after exclusions")
)

// MissingCalibrationError identifies the band and scene missing
// scale/offset metadata. Unwraps to ErrMissingCalibration.
type MissingCalibrationError struct {
	Band string
	Time time.Time
}

func (e *MissingCalibrationError) Error() string {
	return fmt.Sprintf("scene %s: band %q has no calibration parameters",
		e.Time.Format(time.RFC3339), e.Band)
}

func (e *MissingCalibrationError) Unwrap() error { return ErrMissingCalibration }

// GeometryMismatchError identifies a band whose data does not match its
// declared grid, indicating malformed upstream data or a normalizer bug.
// Unwraps to ErrGeometryMismatch.
type GeometryMismatchError struct {
	Band string
	Time time.Time
	Want int // expected pixel count
	Got  int
}

func (e *GeometryMismatchError) Error() string {
	return fmt.Sprintf("scene %s: band %q has %d pixels, grid expects %d",
		e.Time.Format(time.RFC3339), e.Band, e.Got, e.Want)
}

func (e *GeometryMismatchError) Unwrap() error { return ErrGeometryMismatch }
