package mathkernel

import (
	"testing"
	"time"
)

func TestInsulinCurve_ActivityRemaining(t *testing.T) {
	c := DefaultInsulinCurve()

	tests := []struct {
		name       string
		minutesAgo float64
		want       float64
	}{
		{"just delivered", 0, 1.0},
		{"at DIA boundary", 300, 0},
		{"past DIA", 400, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ActivityRemaining(tt.minutesAgo)
			if got != tt.want {
				t.Errorf("ActivityRemaining(%v) = %v, want %v", tt.minutesAgo, got, tt.want)
			}
		})
	}
}

func TestInsulinCurve_ActivityRemaining_Monotonic(t *testing.T) {
	c := DefaultInsulinCurve()
	prev := c.ActivityRemaining(0)
	for minutes := 10.0; minutes <= 300; minutes += 10 {
		got := c.ActivityRemaining(minutes)
		if got > prev {
			t.Fatalf("ActivityRemaining(%v) = %v, not monotonically non-increasing (prev %v)", minutes, got, prev)
		}
		prev = got
	}
}

func TestInsulinCurve_IOB(t *testing.T) {
	c := DefaultInsulinCurve()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	doses := []Dose{
		{At: now.Add(-30 * time.Minute), Units: 2},
		{At: now.Add(-6 * time.Hour), Units: 5}, // fully decayed
	}

	iob := c.IOB(doses, now)
	if iob <= 0 || iob > 2 {
		t.Errorf("IOB() = %v, want in (0, 2] from the recent dose only", iob)
	}
}

func TestInsulinCurve_Effect_LowersGlucose(t *testing.T) {
	c := DefaultInsulinCurve()
	anchor := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	doses := []Dose{{At: anchor, Units: 1}}

	series := c.Effect(doses, anchor, time.Hour, 5*time.Minute, 50)
	for _, p := range series {
		if p.DeltaMgDL > 0 {
			t.Errorf("Effect point at %v has positive delta %v, want non-positive (insulin suppresses glucose)", p.At, p.DeltaMgDL)
		}
	}
}

func TestInsulinCurve_Effect_RelativeToAnchor(t *testing.T) {
	c := DefaultInsulinCurve()
	anchor := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	// A dose already an hour active at the anchor: already-used insulin
	// is baked into the current glucose reading and must not reappear
	// as a delta at the anchor timestamp itself.
	doses := []Dose{{At: anchor.Add(-time.Hour), Units: 1}}

	series := c.Effect(doses, anchor, time.Hour, 5*time.Minute, 50)
	if len(series) == 0 {
		t.Fatal("Effect() returned no points")
	}
	if series[0].DeltaMgDL != 0 {
		t.Errorf("Effect()[0].DeltaMgDL = %v, want 0 at the anchor", series[0].DeltaMgDL)
	}
	for _, p := range series[1:] {
		if p.DeltaMgDL > 0 {
			t.Errorf("Effect point at %v has positive delta %v, want non-positive past the anchor", p.At, p.DeltaMgDL)
		}
	}
}
