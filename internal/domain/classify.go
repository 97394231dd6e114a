package domain

// Default classifier thresholds. These encode the published fog-detection
// heuristic and are expected to be recalibrated; never inline the literals.
const (
	// DefaultColdCloudK separates high (cold-top) cloud from everything
	// else: CTT strictly below this is high cloud, never fog.
	DefaultColdCloudK = 273.0

	// DefaultFogBTDK is the minimum brightness-temperature difference
	// for a fog signature: BTD strictly above this marks a candidate.
	DefaultFogBTDK = 2.0
)

// Thresholds holds the spectral decision constants in Kelvin.
//
// WarmK is the lower CTT bound for a fog candidate. Physically it is the
// same constant as ColdCloudK, and DefaultThresholds derives it from
// ColdCloudK so the two cannot drift apart when recalibrated; it stays a
// separate named field so the two tests can be tuned independently if the
// heuristic ever calls for a gap between them.
type Thresholds struct {
	ColdCloudK float64 `json:"cold_cloud_k"`
	FogBTDK    float64 `json:"fog_btd_k"`
	WarmK      float64 `json:"warm_k"`
}

// DefaultThresholds returns the published constants, with WarmK tied to
// ColdCloudK as the single source of truth for the 273 K boundary.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ColdCloudK: DefaultColdCloudK,
		FogBTDK:    DefaultFogBTDK,
		WarmK:      DefaultColdCloudK,
	}
}

// Classify applies the per-pixel spectral fog rule to a normalized image
// and returns the scene's binary fog mask.
//
// Per pixel, with btd = btdNum - btdDen:
//
//	isHighCloud = ctt < ColdCloudK
//	isCandidate = ctt > WarmK && btd > FogBTDK
//	fog         = isCandidate && !isHighCloud
//
// Both comparisons are strict, so a CTT exactly at the threshold is
// neither fog nor high cloud. Pixels where any input band is no-data get
// Valid=false: no observation, as opposed to an observed non-fog pixel.
// The decision is a pure function of the three band values; no spatial
// coupling between pixels.
func Classify(img RasterImage, bands BandSet, th Thresholds) (Mask, error) {
	ctt, err := img.Band(bands.CTT)
	if err != nil {
		return Mask{}, err
	}
	num, err := img.Band(bands.BTDNum)
	if err != nil {
		return Mask{}, err
	}
	den, err := img.Band(bands.BTDDen)
	if err != nil {
		return Mask{}, err
	}

	n := img.Grid.Pixels()
	mask := Mask{
		Grid:  img.Grid,
		Time:  img.Time,
		Fog:   make([]bool, n),
		Valid: make([]bool, n),
	}

	for i := 0; i < n; i++ {
		if IsNoData(ctt[i]) || IsNoData(num[i]) || IsNoData(den[i]) {
			continue
		}
		mask.Valid[i] = true

		btd := num[i] - den[i]
		isHighCloud := ctt[i] < th.ColdCloudK
		isCandidate := ctt[i] > th.WarmK && btd > th.FogBTDK
		mask.Fog[i] = isCandidate && !isHighCloud
	}

	return mask, nil
}

// BTD computes the brightness-temperature-difference raster of a
// normalized image, for inspection alongside the binary mask. Pixels with
// no-data in either channel are no-data in the result.
func BTD(img RasterImage, bands BandSet) (RasterImage, error) {
	num, err := img.Band(bands.BTDNum)
	if err != nil {
		return RasterImage{}, err
	}
	den, err := img.Band(bands.BTDDen)
	if err != nil {
		return RasterImage{}, err
	}

	data := make([]float64, len(num))
	for i := range num {
		if IsNoData(num[i]) || IsNoData(den[i]) {
			data[i] = NoData()
			continue
		}
		data[i] = num[i] - den[i]
	}

	return RasterImage{
		Grid:       img.Grid,
		Time:       img.Time,
		Projection: img.Projection,
		Bands:      map[string][]float64{"btd": data},
	}, nil
}
