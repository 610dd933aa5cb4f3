package loopmodel

import "time"

// EffectPoint is one (timestamp, glucose-delta) sample of an effect curve.
type EffectPoint struct {
	At        time.Time
	DeltaMgDL float64
}

// EffectSeries is an ordered, finite glucose-delta curve attributable to
// one input (momentum, carbs, or insulin). It starts at or after the
// glucose sample timestamp it was anchored to.
type EffectSeries []EffectPoint

// StartAt returns the timestamp of the first point, or the zero time if
// the series is empty.
func (e EffectSeries) StartAt() time.Time {
	if len(e) == 0 {
		return time.Time{}
	}
	return e[0].At
}

// ValueAt returns the cumulative delta at or before t, interpolating
// between the two bracketing points. Returns 0 if t precedes the series.
func (e EffectSeries) ValueAt(t time.Time) float64 {
	if len(e) == 0 || t.Before(e[0].At) {
		return 0
	}
	for i := len(e) - 1; i >= 0; i-- {
		if !e[i].At.After(t) {
			if i == len(e)-1 {
				return e[i].DeltaMgDL
			}
			span := e[i+1].At.Sub(e[i].At)
			if span <= 0 {
				return e[i].DeltaMgDL
			}
			frac := t.Sub(e[i].At).Seconds() / span.Seconds()
			return e[i].DeltaMgDL + frac*(e[i+1].DeltaMgDL-e[i].DeltaMgDL)
		}
	}
	return e[0].DeltaMgDL
}
