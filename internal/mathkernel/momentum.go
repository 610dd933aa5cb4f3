package mathkernel

import (
	"math"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// Momentum computes a short-horizon extrapolation of recent glucose
// slope, adapted from the teacher's linear-regression trend calculator
// (predictor.go's CalculateTrend).
type Momentum struct {
	// HorizonMinutes is not read by Effect, which projects over its own
	// horizon argument.
	HorizonMinutes float64
	// DecayRate is the per-minute exponential decay applied to the
	// trend's additional contribution past the first 30 minutes; the
	// contribution accumulated by minute 30 is held, not decayed.
	DecayRate float64
}

// DefaultMomentum sets HorizonMinutes to 90 and a decay rate of 0.02 per
// minute.
func DefaultMomentum() Momentum { return Momentum{HorizonMinutes: 90, DecayRate: 0.02} }

// Trend returns the current slope in mg/dL per 5 minutes from the most
// recent samples (newest first assumed to be samples[0]), via a simple
// linear regression over at most the last 5 points.
func Trend(samples []loopmodel.GlucoseSample) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	if n > 5 {
		n = 5
	}
	var sumX, sumY, sumXY, sumX2 float64
	base := samples[0].At
	for i := 0; i < n; i++ {
		x := base.Sub(samples[i].At).Minutes()
		y := samples[i].MgDL
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	nf := float64(n)
	denom := nf*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	return -slope * 5
}

// Effect projects the momentum effect curve forward from anchor given a
// trend in mg/dL per 5 minutes.
func (m Momentum) Effect(trendPer5Min float64, anchor time.Time, horizon time.Duration, step time.Duration) loopmodel.EffectSeries {
	var series loopmodel.EffectSeries
	steps := int(horizon / step)
	for i := 0; i <= steps; i++ {
		minutesOut := float64(i) * step.Minutes()
		t := anchor.Add(time.Duration(i) * step)
		var delta float64
		if minutesOut <= 30 {
			delta = trendPer5Min * (minutesOut / 5)
		} else {
			effect30 := trendPer5Min * 6
			decay := math.Exp(-m.DecayRate * (minutesOut - 30))
			additional := trendPer5Min * ((minutesOut - 30) / 5) * decay
			delta = effect30 + additional
		}
		series = append(series, loopmodel.EffectPoint{At: t, DeltaMgDL: delta})
	}
	return series
}
