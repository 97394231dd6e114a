package domain

// calibratedSuffix marks a band holding physical brightness temperature
// in Kelvin rather than raw digital counts.
const calibratedSuffix = "_bt"

// Calibrate converts the raw digital counts of each required band to
// brightness temperature using the image's per-band scale/offset metadata:
// bt = raw*scale + offset. The result carries only the calibrated bands,
// renamed with the "_bt" suffix; raw bands and calibration metadata are
// not retained. No-data pixels stay no-data.
//
// A required band without calibration parameters fails the whole scene
// with a *MissingCalibrationError, per the exclusion policy: the caller
// drops the scene and continues the run.
func Calibrate(img RasterImage, bands BandSet) (RasterImage, error) {
	out := RasterImage{
		Grid:       img.Grid,
		Time:       img.Time,
		Projection: img.Projection,
		Bands:      make(map[string][]float64, 3),
	}

	for _, name := range bands.Names() {
		if _, done := out.Bands[name+calibratedSuffix]; done {
			// CTT may share a channel with a BTD band; calibrate once.
			continue
		}
		raw, err := img.Band(name)
		if err != nil {
			return RasterImage{}, err
		}
		params, ok := img.Calibration[name]
		if !ok {
			return RasterImage{}, &MissingCalibrationError{Band: name, Time: img.Time}
		}

		bt := make([]float64, len(raw))
		for i, v := range raw {
			if IsNoData(v) {
				bt[i] = NoData()
				continue
			}
			bt[i] = v*params.Scale + params.Offset
		}
		out.Bands[name+calibratedSuffix] = bt
	}

	return out, nil
}
