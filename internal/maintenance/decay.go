package maintenance

import (
	"math"
	"time"
)

// decayedTemperature applies exponential half-life decay to a temperature.
// Monotonically decreasing in elapsed, bounded below by 0; values that fall
// under the floor snap to 0 so fully-cold records drop out of future scans.
func decayedTemperature(temperature float64, elapsed, halfLife time.Duration) float64 {
	if temperature <= 0 || elapsed <= 0 {
		return clampTemperature(temperature)
	}
	factor := math.Pow(0.5, elapsed.Hours()/halfLife.Hours())
	return clampTemperature(temperature * factor)
}

const temperatureFloor = 0.001

func clampTemperature(t float64) float64 {
	if t < temperatureFloor {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
