package loopmodel

import "time"

// Range is an inclusive glucose target band in mg/dL.
type Range struct {
	Low  float64
	High float64
}

// Mid returns the midpoint of the range.
func (r Range) Mid() float64 { return (r.Low + r.High) / 2 }

// Band is one entry of a time-of-day banded schedule: Value applies
// starting at Start (offset from local midnight) until the next
// band's Start.
type Band[T any] struct {
	Start time.Duration // offset from midnight
	Value T
}

// Schedule is an ordered, non-empty list of time-of-day bands.
type Schedule[T any] []Band[T]

// At returns the value of the band active at the time-of-day of t. The
// schedule is treated as circular: if t precedes the first band's
// start, the last band (wrapping from the previous day) applies.
func (s Schedule[T]) At(t time.Time) (T, bool) {
	var zero T
	if len(s) == 0 {
		return zero, false
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)

	best := -1
	for i, b := range s {
		if b.Start <= offset {
			best = i
		}
	}
	if best == -1 {
		// before the first band today: last band, carried from yesterday
		return s[len(s)-1].Value, true
	}
	return s[best].Value, true
}

// ConfigSnapshot is the configuration read once at the start of a
// prediction step (§9 Design Note: snapshot, don't re-read mid-step).
type ConfigSnapshot struct {
	MaxBasalUnitsPerHour float64
	MaxBolusUnits        float64
	TargetRange          Schedule[Range]
	Sensitivity          Schedule[float64] // ISF, mg/dL per unit
	BasalSchedule        Schedule[float64] // units/hour

	// Override, when non-nil, replaces the scheduled target range for
	// this decision (e.g. a user-initiated temporary target). Supplements
	// the distilled spec with a feature present in the original Loop
	// profile format; see SPEC_FULL.md §4.
	Override *Range
}

// EffectiveTargetRange returns Override if set, else the scheduled band
// active at t. Returns false if neither is available.
func (c ConfigSnapshot) EffectiveTargetRange(t time.Time) (Range, bool) {
	if c.Override != nil {
		return *c.Override, true
	}
	return c.TargetRange.At(t)
}

// Complete reports whether every field required by the prediction step
// (spec.md §4.D step 5) is present.
func (c ConfigSnapshot) Complete() bool {
	return c.MaxBasalUnitsPerHour > 0 &&
		len(c.TargetRange) > 0 &&
		len(c.Sensitivity) > 0 &&
		len(c.BasalSchedule) > 0
}

// CompleteForBolus reports whether every field required by
// recommend_bolus (spec.md §4.F step 1: "prediction, max bolus, target
// range, sensitivity, basal schedule") is present. Unlike Complete, this
// also requires MaxBolusUnits, which the temp-basal path never reads.
func (c ConfigSnapshot) CompleteForBolus() bool {
	return c.MaxBolusUnits > 0 &&
		len(c.TargetRange) > 0 &&
		len(c.Sensitivity) > 0 &&
		len(c.BasalSchedule) > 0
}
