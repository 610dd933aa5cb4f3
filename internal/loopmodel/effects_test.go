package loopmodel

import (
	"testing"
	"time"
)

func TestEffectSeries_ValueAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := EffectSeries{
		{At: base, DeltaMgDL: 0},
		{At: base.Add(5 * time.Minute), DeltaMgDL: 10},
		{At: base.Add(10 * time.Minute), DeltaMgDL: 20},
	}

	tests := []struct {
		name     string
		at       time.Time
		expected float64
	}{
		{"before series", base.Add(-time.Minute), 0},
		{"exact first point", base, 0},
		{"midpoint interpolated", base.Add(150 * time.Second), 5},
		{"exact last point", base.Add(10 * time.Minute), 20},
		{"after series clamps to last", base.Add(time.Hour), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := series.ValueAt(tt.at)
			if got != tt.expected {
				t.Errorf("ValueAt(%v) = %v, want %v", tt.at, got, tt.expected)
			}
		})
	}
}

func TestEffectSeries_StartAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := EffectSeries{{At: base, DeltaMgDL: 0}}
	if got := series.StartAt(); !got.Equal(base) {
		t.Errorf("StartAt() = %v, want %v", got, base)
	}

	var empty EffectSeries
	if got := empty.StartAt(); !got.IsZero() {
		t.Errorf("StartAt() on empty series = %v, want zero time", got)
	}
}
