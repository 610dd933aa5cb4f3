package mathkernel

import (
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// Adapter implements the engine's MathKernel port over this package's
// free functions, so the engine depends only on the interface while a
// single concrete implementation is shipped for runnability.
type Adapter struct{}

func (Adapter) Predict(latest loopmodel.GlucoseSample, momentum, carbs, insulin loopmodel.EffectSeries) loopmodel.Prediction {
	return Predict(latest, momentum, carbs, insulin)
}

func (Adapter) RecommendTempBasal(pred loopmodel.Prediction, lastTemp *loopmodel.TempBasal, maxBasal float64, target loopmodel.Range, isf float64, scheduledBasal float64, allowPredictiveLow bool, now time.Time) *loopmodel.Recommendation {
	return RecommendTempBasal(pred, lastTemp, maxBasal, target, isf, scheduledBasal, allowPredictiveLow, now)
}

func (Adapter) RecommendBolus(pred loopmodel.Prediction, iob, maxBolus float64, target loopmodel.Range, isf float64) float64 {
	return RecommendBolus(pred, iob, maxBolus, target, isf)
}
