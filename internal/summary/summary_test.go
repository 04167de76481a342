package summary

import (
	"testing"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/model"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func reading(v float64, offset time.Duration) model.GlucoseReading {
	return model.GlucoseReading{Value: v, Timestamp: t0.Add(offset)}
}

func TestCompute_AverageAndLast(t *testing.T) {
	// Storage order deliberately differs from time order: 150 is newest.
	readings := []model.GlucoseReading{
		reading(100, 0),
		reading(150, 2*time.Hour),
		reading(120, time.Hour),
	}

	s := Compute(readings)

	if s.Count != 3 {
		t.Errorf("Count = %d, want 3", s.Count)
	}
	if s.Avg == nil || *s.Avg != 123.3 {
		t.Errorf("Avg = %v, want 123.3", s.Avg)
	}
	if s.Last == nil || *s.Last != 150 {
		t.Errorf("Last = %v, want 150 (maximum timestamp)", s.Last)
	}
}

func TestCompute_Empty(t *testing.T) {
	for _, in := range [][]model.GlucoseReading{nil, {}} {
		s := Compute(in)
		if s.Count != 0 || s.Avg != nil || s.Last != nil {
			t.Errorf("Compute(%v) = %+v, want zero count and nil stats", in, s)
		}
	}
}

func TestCompute_ZeroValuesAreData(t *testing.T) {
	s := Compute([]model.GlucoseReading{reading(0, 0)})

	if s.Avg == nil || *s.Avg != 0 {
		t.Errorf("Avg = %v, want pointer to 0", s.Avg)
	}
}

func TestCompute_TieKeepsFirst(t *testing.T) {
	s := Compute([]model.GlucoseReading{reading(110, 0), reading(130, 0)})

	if *s.Last != 110 {
		t.Errorf("Last = %v, want 110", *s.Last)
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	in := []model.GlucoseReading{reading(100.04, 0), reading(100.06, time.Minute)}

	Compute(in)

	if in[0].Value != 100.04 || in[1].Value != 100.06 {
		t.Errorf("input values changed: %v, %v", in[0].Value, in[1].Value)
	}
}

func TestRound1(t *testing.T) {
	tests := map[float64]float64{
		123.333: 123.3,
		123.36:  123.4,
		99.96:   100.0,
		70:      70,
		-1.25:   -1.3,
	}
	for in, want := range tests {
		if got := Round1(in); got != want {
			t.Errorf("Round1(%v) = %v, want %v", in, got, want)
		}
	}
}
