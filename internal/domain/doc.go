// Package domain models GOES-R ABI infrared imagery and the fog-cover
// frequency computation applied to it.
//
// # Data Source
//
// Scenes come from the GOES-R Advanced Baseline Imager (ABI) Cloud and
// Moisture Imagery product, served by the imagery-catalog collaborator as
// georeferenced multi-band rasters with per-band scale/offset metadata.
// Band names follow ABI channel numbering:
//
//	C07  3.9 um shortwave IR window
//	C13  10.3 um clean longwave IR window
//	C14  11.2 um longwave IR window
//
// # Calibration
//
// Catalog scenes carry raw digital counts. Brightness temperature in
// Kelvin is recovered per band as bt = raw*scale + offset, using the
// scale/offset pair shipped with each scene. A scene missing the pair for
// a required band is excluded from the run (see [Calibrate]).
//
// # Fog Detection
//
// The classifier implements a two-test spectral heuristic for fog and low
// stratus, evaluated independently per pixel:
//
//	BTD = BT(11.2 um) - BT(3.9 um)
//
//	high cloud:    CTT < 273 K           (cold cloud top, excluded)
//	fog candidate: CTT > 273 K, BTD > 2 K
//	fog          = candidate && !high cloud
//
// At night the small-droplet emissivity of fog depresses the 3.9 um
// brightness temperature relative to 11.2 um, producing the positive BTD
// signature; the warm cloud-top test rejects mid- and high-level cloud
// with a similar difference. Comparisons are strict, so a cloud top at
// exactly 273 K is neither fog nor high cloud. The constants live in
// [Thresholds] and are expected to be recalibrated per region and season.
//
// # Aggregation
//
// Per-scene binary masks fold into two integer count grids: fog
// occurrences and valid observations. Fog frequency for a window is
// 100*fog/total per pixel; a pixel never observed (total == 0) is
// explicitly no-data, never zero. Integer counts make the fold
// order-independent, so parallel partial accumulators merged at the end
// match a serial fold exactly (see [Accumulator]).
//
// # No-Data Convention
//
// Band storage uses NaN as the no-data sentinel, tested only through
// [IsNoData]. "No observation" is tracked separately from "observed, not
// fog" end to end: in bands as no-data, in masks as Valid=false, in count
// grids as a missing total increment, and in the output raster as
// no-data.
package domain
