package geo

import (
	"fmt"
	"math"
)

// CellSizeDegrees is fixed; changing it changes every published grid id.
const CellSizeDegrees = 0.01

const DistanceRoundingMeters = 100

type GridCell struct {
	GridLat float64 `json:"gridLat"`
	GridLng float64 `json:"gridLng"`
	GridID  string  `json:"gridId"`
}

// Quantize maps a raw coordinate onto its grid cell. Pure and stable: every
// point inside one cell yields the same cell.
func Quantize(lat, lng float64) GridCell {
	latIdx := int64(math.Floor(lat / CellSizeDegrees))
	lngIdx := int64(math.Floor(lng / CellSizeDegrees))
	return GridCell{
		GridLat: roundTo((float64(latIdx)+0.5)*CellSizeDegrees, 6),
		GridLng: roundTo((float64(lngIdx)+0.5)*CellSizeDegrees, 6),
		GridID:  fmt.Sprintf("%d:%d", latIdx, lngIdx),
	}
}

// RoundDistance rounds meters to the nearest DistanceRoundingMeters.
func RoundDistance(meters float64) int {
	if meters <= 0 || math.IsNaN(meters) {
		return 0
	}
	return int(math.Round(meters/DistanceRoundingMeters)) * DistanceRoundingMeters
}

// CoarseRadius rounds a search radius up to the next DistanceRoundingMeters.
func CoarseRadius(meters float64) float64 {
	if meters <= 0 || math.IsNaN(meters) {
		return 0
	}
	return math.Ceil(meters/DistanceRoundingMeters) * DistanceRoundingMeters
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
