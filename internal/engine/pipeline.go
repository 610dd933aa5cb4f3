package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/openloop/loopengine/internal/loopmodel"
)

// update is the internal Decision Pipeline step of spec.md §4.D, called
// by both RunLoop and GetStatus under serial access. It refreshes any
// missing effects, then computes the prediction if one is not already
// cached. Errors from prediction computation propagate to the caller;
// the prediction slot is left unset on failure.
func (e *Engine) update(ctx context.Context) error {
	latest, err := e.glucoseForAnchor(ctx)
	if err == nil {
		e.refreshMissing(ctx, latest.At)
	}

	if e.cache.prediction != nil {
		return nil
	}

	cycleID := uuid.NewString()
	pred, rec, predErr := e.computePrediction(ctx, cycleID)
	var latestPtr *loopmodel.GlucoseSample
	if err == nil {
		latestPtr = &latest
	}
	e.logger.DecisionRecord(DecisionFields{
		CycleID:        cycleID,
		Latest:         latestPtr,
		Err:            predErr,
		Prediction:     pred,
		Recommendation: rec,
	})
	return predErr
}

// glucoseForAnchor fetches the latest glucose sample used as the refresh
// anchor; absence of a store or sample is not itself fatal to update(),
// only to prediction computation, so the error is reported but not yet
// surfaced here.
func (e *Engine) glucoseForAnchor(ctx context.Context) (loopmodel.GlucoseSample, error) {
	if e.glucose == nil {
		return loopmodel.GlucoseSample{}, loopmodel.NewMissingData("glucose store not available")
	}
	sample, err := e.glucose.LatestGlucose(ctx)
	if err != nil {
		return loopmodel.GlucoseSample{}, err
	}
	if sample == nil {
		return loopmodel.GlucoseSample{}, loopmodel.NewMissingData("no glucose sample available")
	}
	return *sample, nil
}

// computePrediction implements spec.md §4.D's "Prediction computation"
// steps 1-6, only ever invoked when the prediction slot is empty.
func (e *Engine) computePrediction(ctx context.Context, cycleID string) (loopmodel.Prediction, *loopmodel.Recommendation, error) {
	now := e.clock.Now()

	latest, err := e.glucoseForAnchor(ctx)
	if err != nil {
		return nil, nil, err
	}

	if e.pumpStatus == nil {
		return nil, nil, loopmodel.NewMissingData("pump status not available")
	}
	status, err := e.pumpStatus.Latest(ctx)
	if err != nil {
		return nil, nil, err
	}
	if status == nil {
		return nil, nil, loopmodel.NewMissingData("no pump status available")
	}

	// A sample exactly at the recency boundary is treated as fresh; only
	// strictly older samples are stale.
	if now.Sub(latest.At) > recencyInterval {
		return nil, nil, loopmodel.NewStaleData("glucose sample", now.Sub(latest.At).String())
	}
	if now.Sub(status.At) > recencyInterval {
		return nil, nil, loopmodel.NewStaleData("pump status", now.Sub(status.At).String())
	}

	if !e.cache.effectsComplete() {
		return nil, nil, loopmodel.NewMissingData("Cannot predict glucose due to missing effect data")
	}

	pred := e.math.Predict(latest, *e.cache.momentum, *e.cache.carbs, *e.cache.insulin)
	e.cache.assignPrediction(pred)

	cfg := e.config.Snapshot(ctx)
	if !cfg.Complete() {
		return pred, nil, loopmodel.NewMissingData("configuration incomplete")
	}
	target, _ := cfg.EffectiveTargetRange(now)
	sensitivity, _ := cfg.Sensitivity.At(now)
	basal, _ := cfg.BasalSchedule.At(now)

	rec := e.math.RecommendTempBasal(pred, e.cache.lastTemp, cfg.MaxBasalUnitsPerHour, target, sensitivity, basal, allowPredictiveTempBelowRange, now)
	if rec != nil {
		rec.IssuedAt = now
		rec.ID = cycleID
	}
	e.cache.assignRecommendation(rec)

	return pred, rec, nil
}

// RunLoop is the fire-and-forget tick of spec.md §4.D. It clears the
// last loop error, runs update(), and on success either completes
// (dosing disabled) or hands the recommendation to the Dosing Gate
// (dosing enabled). The gate owns the terminal notification in the
// dosing-enabled path; RunLoop itself does not notify in that case.
func (e *Engine) RunLoop(ctx context.Context) {
	e.submitAndWait(func() { e.runLoopLocked(ctx) })
}
