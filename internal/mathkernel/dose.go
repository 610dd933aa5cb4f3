package mathkernel

import (
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// RecommendTempBasal implements the temp-basal recommendation math
// spec.md §4.D.6 treats as an external collaborator: given the
// prediction, the last enacted temp basal, and the configuration
// snapshot, it derives a rate/duration nudging the eventual glucose
// toward the target range. allowPredictiveLow mirrors the "allow
// predictive temp below range" constant (the engine passes its
// allowPredictiveTempBelowRange, always true
// per spec.md §6, threaded through rather than hardcoded so tests can
// exercise both paths).
func RecommendTempBasal(
	pred loopmodel.Prediction,
	lastTemp *loopmodel.TempBasal,
	maxBasal float64,
	target loopmodel.Range,
	isf float64,
	scheduledBasal float64,
	allowPredictiveLow bool,
	now time.Time,
) *loopmodel.Recommendation {
	if len(pred) == 0 || isf <= 0 {
		return nil
	}

	eventual := pred[len(pred)-1].MgDL

	var minutesToLow float64 = -1
	if allowPredictiveLow {
		for _, p := range pred {
			if p.MgDL < target.Low {
				minutesToLow = p.At.Sub(pred[0].At).Minutes()
				break
			}
		}
	}

	var rate float64
	switch {
	case minutesToLow >= 0 && minutesToLow < 60:
		// Predicted to go low within the hour: suspend delivery.
		rate = 0
	case eventual > target.High:
		correctionPerHour := (eventual - target.Mid()) / isf
		rate = scheduledBasal + correctionPerHour
	case eventual < target.Low:
		correctionPerHour := (target.Mid() - eventual) / isf
		rate = scheduledBasal - correctionPerHour
	default:
		rate = scheduledBasal
	}

	if rate < 0 {
		rate = 0
	}
	if rate > maxBasal {
		rate = maxBasal
	}

	// Avoid oscillation: if the recommendation differs from the currently
	// running temp's rate by less than 5% of the scheduled basal, keep
	// running it instead of restarting.
	if lastTemp != nil && now.Before(lastTemp.End) {
		if diff := rate - lastTemp.RateUnitsPerHour; diff > -0.05*scheduledBasal && diff < 0.05*scheduledBasal {
			return nil
		}
	}

	return &loopmodel.Recommendation{
		IssuedAt:         now,
		RateUnitsPerHour: round2(rate),
		Duration:         30 * time.Minute,
	}
}

// RecommendBolus implements the bolus correction math of spec.md §4.F's
// recommend_bolus: a correction dose derived from the first prediction
// point against the target range and sensitivity, minus insulin already
// on board, clamped to [0, maxBolus].
func RecommendBolus(pred loopmodel.Prediction, iob, maxBolus float64, target loopmodel.Range, isf float64) float64 {
	if len(pred) == 0 || isf <= 0 {
		return 0
	}
	current := pred[0].MgDL
	if current <= target.High {
		return 0
	}
	correction := (current - target.Mid()) / isf
	units := correction - iob
	if units < 0 {
		units = 0
	}
	if units > maxBolus {
		units = maxBolus
	}
	return round2(units)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
