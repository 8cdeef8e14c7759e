package node

import "time"

// nowSeconds returns the current wall-clock time as fractional seconds —
// the unit and encoding every peer must agree on for LWW to compare
// correctly (see spec §5 on timestamp precision).
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
