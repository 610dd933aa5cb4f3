package mathkernel

import (
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// Predict sums the three effect series onto the latest glucose sample,
// producing the forward-projected timeline. The three series are
// expected to share the same (anchor, horizon, step) the Refresh
// Coordinator used to request them, anchored at latest.At; Predict walks
// the timestamps of whichever series is longest and evaluates the others
// via EffectSeries.ValueAt, so a short series (e.g. carbs with nothing
// outstanding) does not truncate the prediction. The first such
// timestamp is the anchor itself, where every effect series is 0 by
// construction, so it is skipped in favor of the single seeded point at
// latest.At — otherwise the anchor would appear twice in the prediction
// (invariant 3: the prediction's first point is the latest glucose
// sample's timestamp, not a duplicate of it).
func Predict(latest loopmodel.GlucoseSample, momentum, carbs, insulin loopmodel.EffectSeries) loopmodel.Prediction {
	timestamps := longestTimestamps(momentum, carbs, insulin)
	if len(timestamps) > 0 {
		timestamps = timestamps[1:]
	}

	pred := make(loopmodel.Prediction, 0, len(timestamps)+1)
	pred = append(pred, loopmodel.PredictionPoint{At: latest.At, MgDL: latest.MgDL})

	for _, t := range timestamps {
		value := latest.MgDL + momentum.ValueAt(t) + carbs.ValueAt(t) + insulin.ValueAt(t)
		if value < 20 {
			value = 20
		}
		if value > 500 {
			value = 500
		}
		pred = append(pred, loopmodel.PredictionPoint{At: t, MgDL: value})
	}
	return pred
}

func longestTimestamps(series ...loopmodel.EffectSeries) []time.Time {
	var longest loopmodel.EffectSeries
	for _, s := range series {
		if len(s) > len(longest) {
			longest = s
		}
	}
	out := make([]time.Time, 0, len(longest))
	for _, p := range longest {
		out = append(out, p.At)
	}
	return out
}
