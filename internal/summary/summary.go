// Package summary computes windowed glucose statistics for one patient.
package summary

import (
	"math"

	"github.com/geniesugar/glucose-monitor/internal/model"
)

// Stats summarizes the readings in a window. Avg and Last are nil when the
// window is empty; zero is a real (if implausible) glucose value.
type Stats struct {
	Count int
	Avg   *float64 // arithmetic mean, rounded to one decimal
	Last  *float64 // value at the maximum timestamp, rounded to one decimal
}

// Compute summarizes every reading it is given; callers filter the window.
// Last is chosen by timestamp, not slice position, so the result does not
// depend on storage order. On a timestamp tie the earlier element wins.
func Compute(readings []model.GlucoseReading) Stats {
	if len(readings) == 0 {
		return Stats{}
	}

	var sum float64
	latest := 0
	for i, r := range readings {
		sum += r.Value
		if r.Timestamp.After(readings[latest].Timestamp) {
			latest = i
		}
	}

	avg := Round1(sum / float64(len(readings)))
	last := Round1(readings[latest].Value)
	return Stats{
		Count: len(readings),
		Avg:   &avg,
		Last:  &last,
	}
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
