package util

import "github.com/asecurityteam/rolling"

// CreateRollingWindow creates a window with one bucket per sample.
// Empty buckets take part in reductions, so size it to the number of samples it will hold.
func CreateRollingWindow(size int) *rolling.PointPolicy {
	return rolling.NewPointPolicy(rolling.NewWindow(size))
}

// WindowOf creates a window holding exactly the given values
func WindowOf(values []float64) *rolling.PointPolicy {
	window := CreateRollingWindow(len(values))
	for _, value := range values {
		window.Append(value)
	}
	return window
}

// GetWindowMax returns the max value in the window
func GetWindowMax(window *rolling.PointPolicy) float64 {
	return window.Reduce(rolling.Max)
}

// GetWindowMin returns the min value in the window
func GetWindowMin(window *rolling.PointPolicy) float64 {
	return window.Reduce(rolling.Min)
}

// GetWindowAvg returns the average of all values in the window
func GetWindowAvg(window *rolling.PointPolicy) float64 {
	return window.Reduce(rolling.Avg)
}
