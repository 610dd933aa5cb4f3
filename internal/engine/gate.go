package engine

import (
	"context"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// runDosingGate is invoked from RunLoop's dosing-enabled path. It hands
// the cached recommendation to the Dosing Gate and owns the terminal
// notification for this tick, per spec.md §4.E↔4.F coupling.
func (e *Engine) runDosingGate(ctx context.Context) {
	err := e.setRecommendedTempBasal(ctx)
	if err != nil {
		e.setLoopError(err)
	} else {
		e.setLoopCompleted()
	}
	e.notify(LoopDataUpdated)
}

// setRecommendedTempBasal is spec.md §4.F's temp-basal enactment path.
func (e *Engine) setRecommendedTempBasal(ctx context.Context) error {
	rec := e.cache.recommendation
	if rec == nil {
		return nil
	}

	now := e.clock.Now()
	// Recommendation freshness uses a strict inequality: an issued-at
	// exactly 5 minutes old is stale and may not be enacted
	// (DESIGN.md Open Question 1).
	if now.Sub(rec.IssuedAt) >= recommendationFreshness {
		return loopmodel.NewStaleData("recommendation", now.Sub(rec.IssuedAt).String())
	}

	if e.device == nil || !e.device.Connected(ctx) {
		return &loopmodel.ConnectionError{Detail: "no pump device connected"}
	}
	if !e.device.HasCommandChannel(ctx) {
		return &loopmodel.ConfigurationError{Detail: "device has no configured command channel"}
	}

	ackRate, timeRemaining, err := e.device.SetTempBasal(ctx, rec.RateUnitsPerHour, rec.Duration)
	if err != nil {
		return err
	}

	end := now.Add(timeRemaining)
	start := end.Add(-rec.Duration)
	e.cache.lastTemp = &loopmodel.TempBasal{
		Start:            start,
		End:              end,
		RateUnitsPerHour: ackRate,
	}
	e.cache.assignRecommendation(nil)
	return nil
}

// RecommendBolus is spec.md §4.F's recommend_bolus: derives a correction
// bolus from the cached prediction, subtracting any pending last bolus.
func (e *Engine) RecommendBolus(ctx context.Context) (float64, error) {
	var units float64
	var err error
	e.submitAndWait(func() {
		units, err = e.recommendBolus(ctx)
	})
	return units, err
}

func (e *Engine) recommendBolus(ctx context.Context) (float64, error) {
	if e.cache.prediction == nil {
		return 0, loopmodel.NewMissingData("prediction not available")
	}
	cfg := e.config.Snapshot(ctx)
	if !cfg.CompleteForBolus() {
		return 0, loopmodel.NewMissingData("configuration incomplete")
	}

	now := e.clock.Now()
	pred := *e.cache.prediction
	if now.Sub(pred[0].At) > recencyInterval {
		return 0, loopmodel.NewStaleData("prediction", now.Sub(pred[0].At).String())
	}

	target, _ := cfg.EffectiveTargetRange(now)
	sensitivity, _ := cfg.Sensitivity.At(now)

	var pendingBolus float64
	if e.cache.lastBolus != nil {
		pendingBolus = e.cache.lastBolus.Units
	}

	raw := e.math.RecommendBolus(pred, 0, cfg.MaxBolusUnits, target, sensitivity)
	units := raw - pendingBolus
	if units < 0 {
		units = 0
	}
	return units, nil
}

// EnactBolus is spec.md §4.F's enact_bolus: dispatches units to the
// device and records last bolus on success.
func (e *Engine) EnactBolus(ctx context.Context, units float64) error {
	var err error
	e.submitAndWait(func() {
		err = e.enactBolus(ctx, units)
	})
	return err
}

func (e *Engine) enactBolus(ctx context.Context, units float64) error {
	if units <= 0 {
		return nil
	}
	if e.device == nil || !e.device.Connected(ctx) {
		return &loopmodel.ConnectionError{Detail: "no pump device connected"}
	}
	if !e.device.HasCommandChannel(ctx) {
		return &loopmodel.ConfigurationError{Detail: "device has no configured command channel"}
	}

	if err := e.device.SetNormalBolus(ctx, units); err != nil {
		return &loopmodel.CommunicationError{Detail: "bolus delivery failed", Cause: err}
	}

	e.cache.lastBolus = &loopmodel.BolusRecord{Units: units, EnactedAt: e.clock.Now()}
	return nil
}
