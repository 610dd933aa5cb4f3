// Package mathkernel implements the momentum/carb/insulin effect curves,
// the prediction summation, and the temp-basal/bolus recommendation math
// that spec.md treats as external collaborators. The insulin and carb
// activity curves are adapted from the oref1-inspired engine this repo
// was transformed from (internal/prediction/oref_engine.go and
// predictor.go in the teacher), restructured around loopmodel's
// EffectSeries/Prediction types.
package mathkernel

import (
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// InsulinCurve computes the glucose-suppressing effect of outstanding
// insulin using a piecewise-linear activity model: activity remaining
// falls from 1.0 to 0.9 by PeakMinutes, then linearly to 0 at DIAMinutes.
type InsulinCurve struct {
	PeakMinutes float64
	DIAMinutes  float64
}

// DefaultInsulinCurve matches common rapid-acting insulin parameters:
// peak activity at 75 minutes, five hours duration of action.
func DefaultInsulinCurve() InsulinCurve {
	return InsulinCurve{PeakMinutes: 75, DIAMinutes: 300}
}

// ActivityRemaining returns the fraction of a dose still active after
// minutesAgo have elapsed since it was delivered.
func (c InsulinCurve) ActivityRemaining(minutesAgo float64) float64 {
	if minutesAgo <= 0 {
		return 1.0
	}
	if minutesAgo >= c.DIAMinutes {
		return 0
	}
	if minutesAgo < c.PeakMinutes {
		return 1 - (minutesAgo/c.PeakMinutes)*0.1
	}
	remaining := c.DIAMinutes - minutesAgo
	totalDecay := c.DIAMinutes - c.PeakMinutes
	if totalDecay <= 0 {
		return 0
	}
	return 0.9 * (remaining / totalDecay)
}

// Dose is a single insulin delivery used to build an insulin effect series.
type Dose struct {
	At    time.Time
	Units float64
}

// Effect projects the glucose-lowering effect of doses from anchor over
// the horizon, sampled every step, in mg/dL per unit delivered scaled by
// the sensitivity factor isf (mg/dL lowered per unit). The series is
// relative to the anchor: Effect(...)[0].DeltaMgDL is always 0, since
// whatever portion of a dose has already been used as of the anchor is
// already reflected in the latest glucose reading and must not be
// double-counted by the prediction (spec.md §3: a prediction is built by
// summing effects onto the *latest* glucose sample).
func (c InsulinCurve) Effect(doses []Dose, anchor time.Time, horizon time.Duration, step time.Duration, isf float64) loopmodel.EffectSeries {
	usedAtAnchor := make([]float64, len(doses))
	for i, d := range doses {
		if d.At.After(anchor) {
			continue
		}
		usedAtAnchor[i] = 1 - c.ActivityRemaining(anchor.Sub(d.At).Minutes())
	}

	var series loopmodel.EffectSeries
	steps := int(horizon / step)
	for i := 0; i <= steps; i++ {
		t := anchor.Add(time.Duration(i) * step)
		var delta float64
		for j, d := range doses {
			if d.At.After(t) {
				continue
			}
			minutesAgo := t.Sub(d.At).Minutes()
			used := 1 - c.ActivityRemaining(minutesAgo)
			delta -= d.Units * (used - usedAtAnchor[j]) * isf
		}
		series = append(series, loopmodel.EffectPoint{At: t, DeltaMgDL: delta})
	}
	return series
}

// IOB returns the total insulin still on board at `now` across doses.
func (c InsulinCurve) IOB(doses []Dose, now time.Time) float64 {
	var total float64
	for _, d := range doses {
		if d.At.After(now) {
			continue
		}
		minutesAgo := now.Sub(d.At).Minutes()
		if minutesAgo > c.DIAMinutes {
			continue
		}
		total += d.Units * c.ActivityRemaining(minutesAgo)
	}
	return total
}
