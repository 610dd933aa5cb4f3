package mathkernel

import (
	"math"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// CarbCurve models glucose rise from outstanding carbohydrate absorption
// using a sigmoid absorption profile (slow start, faster in the middle,
// slow at the end), adapted from the teacher's carbsAbsorbed helper.
type CarbCurve struct {
	AbsorptionMinutes float64
}

// DefaultCarbCurve assumes a 180-minute (3 hour) absorption window.
func DefaultCarbCurve() CarbCurve { return CarbCurve{AbsorptionMinutes: 180} }

// Absorbed returns the grams absorbed of a totalGrams entry after
// minutesAgo have elapsed.
func (c CarbCurve) Absorbed(totalGrams, minutesAgo float64) float64 {
	if minutesAgo <= 0 {
		return 0
	}
	if minutesAgo >= c.AbsorptionMinutes {
		return totalGrams
	}
	progress := minutesAgo / c.AbsorptionMinutes
	return totalGrams / (1 + math.Exp(-10*(progress-0.5)))
}

// Entry is a single carbohydrate entry used to build a carb effect series.
type Entry struct {
	At    time.Time
	Grams float64
}

// Effect projects the glucose-raising effect of carb entries from anchor
// over the horizon, using carbSensitivity (mg/dL raised per gram
// absorbed, i.e. ISF/ICR). The series is relative to the anchor:
// Effect(...)[0].DeltaMgDL is always 0, since whatever portion of an
// entry has already absorbed as of the anchor is already reflected in
// the latest glucose reading and must not be double-counted by the
// prediction (spec.md §3).
func (c CarbCurve) Effect(entries []Entry, anchor time.Time, horizon time.Duration, step time.Duration, carbSensitivity float64) loopmodel.EffectSeries {
	absorbedAtAnchor := make([]float64, len(entries))
	for i, e := range entries {
		if e.At.After(anchor) {
			continue
		}
		absorbedAtAnchor[i] = c.Absorbed(e.Grams, anchor.Sub(e.At).Minutes())
	}

	var series loopmodel.EffectSeries
	steps := int(horizon / step)
	for i := 0; i <= steps; i++ {
		t := anchor.Add(time.Duration(i) * step)
		var delta float64
		for j, e := range entries {
			if e.At.After(t) {
				continue
			}
			minutesAgo := t.Sub(e.At).Minutes()
			delta += (c.Absorbed(e.Grams, minutesAgo) - absorbedAtAnchor[j]) * carbSensitivity
		}
		series = append(series, loopmodel.EffectPoint{At: t, DeltaMgDL: delta})
	}
	return series
}

// COB returns the grams of carbohydrate still outstanding at now.
func (c CarbCurve) COB(entries []Entry, now time.Time) float64 {
	var total float64
	for _, e := range entries {
		if e.At.After(now) {
			continue
		}
		minutesAgo := now.Sub(e.At).Minutes()
		if minutesAgo > c.AbsorptionMinutes {
			continue
		}
		remaining := e.Grams - c.Absorbed(e.Grams, minutesAgo)
		if remaining > 0 {
			total += remaining
		}
	}
	return total
}
