package maps

import (
	"fmt"
	"math"
)

const metersPerMile = 1609.344

// FormatDistance renders meters the way the planner UI shows them:
// metres below 1 km, one decimal of miles below 10 mi, whole miles above.
// The 10 mi threshold is applied after rounding to one decimal so 9.97 mi
// reads "10 mi" rather than "10.0 mi".
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	miles := float64(meters) / metersPerMile
	if tenths := math.Round(miles * 10); tenths < 100 {
		return fmt.Sprintf("%.1f mi", tenths/10)
	}
	return fmt.Sprintf("%d mi", int(math.Round(miles)))
}

// FormatDuration renders seconds as "N sec", "N min", "H hr" or "H hr M min".
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d sec", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%d hr", hours)
	}
	return fmt.Sprintf("%d hr %d min", hours, rest)
}
