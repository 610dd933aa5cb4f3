package engine

import (
	"context"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// OnGlucoseUpdated is Event Ingress's glucose-updated handler (spec.md
// §4.E). It clears momentum and notifies, then — if the pump status is
// stale and the radio has not retuned recently — fires a retune request.
func (e *Engine) OnGlucoseUpdated(ctx context.Context) {
	e.submitAndWait(func() {
		e.cache.assignMomentum(nil, false)
		e.notify(LoopDataUpdated)
		e.maybeRetune(ctx)
	})
}

// maybeRetune requests a pump-radio retune if the pump status is older
// than the recency interval and the radio has not itself retuned within
// that window. Fire-and-forget: errors are logged, not propagated
// (DESIGN.md Open Question 3: no additional per-attempt cooldown is
// layered on top of this check).
func (e *Engine) maybeRetune(ctx context.Context) {
	if e.pumpStatus == nil || e.device == nil {
		return
	}
	status, err := e.pumpStatus.Latest(ctx)
	if err != nil || status == nil {
		return
	}
	now := e.clock.Now()
	if now.Sub(status.At) <= recencyInterval {
		return
	}
	if now.Sub(e.device.LastTuned(ctx)) <= recencyInterval {
		return
	}
	go func() {
		if err := e.device.Tune(ctx); err != nil {
			e.logger.Error("pump retune failed", err, nil)
		}
	}()
}

// OnPumpStatusUpdated is Event Ingress's pump-status-updated handler
// (spec.md §4.E). It broadcasts LoopRunning immediately, then schedules
// a delayed block on the decision queue that clears waitingForSentry and
// insulin and runs the loop, sidestepping the pump telemetry burst
// pattern (three packets five seconds apart).
func (e *Engine) OnPumpStatusUpdated(ctx context.Context) {
	e.submitAndWait(func() {
		e.waitingForSentry = true
		e.notify(LoopRunning)

		if e.sentryTimer != nil {
			e.sentryTimer.Stop()
		}
		e.sentryTimer = time.AfterFunc(e.sentryQuietWindow, func() {
			e.submit(func() {
				e.waitingForSentry = false
				e.cache.assignInsulin(nil, false, e.clock.Now())
				e.runLoopLocked(ctx)
			})
		})
	})
}

// OnCarbEntriesUpdated is Event Ingress's carb-entries-updated handler
// (spec.md §4.E): clear carbs and notify.
func (e *Engine) OnCarbEntriesUpdated() {
	e.submitAndWait(func() {
		e.cache.assignCarbs(nil, false)
		e.notify(LoopDataUpdated)
	})
}

// AddCarbEntry is the caller-driven carb-entry-addition path of spec.md
// §4.E: forward the entry to the carb store, then clear carbs, update,
// and compute a bolus recommendation.
func (e *Engine) AddCarbEntry(ctx context.Context, grams float64, at time.Time) (float64, error) {
	if e.carbs == nil {
		return 0, loopmodel.NewMissingData("carb store not available")
	}
	if err := e.carbs.AddCarbEntry(ctx, grams, at); err != nil {
		return 0, err
	}

	var units float64
	var err error
	e.submitAndWait(func() {
		e.cache.assignCarbs(nil, false)
		if updErr := e.update(ctx); updErr != nil {
			err = updErr
			return
		}
		units, err = e.recommendBolus(ctx)
	})
	return units, err
}

// runLoopLocked is RunLoop's body, reentered directly from the decision
// queue (the sentry timer callback is already running inside a queue
// step, so it must not re-enqueue through submitAndWait).
func (e *Engine) runLoopLocked(ctx context.Context) {
	e.lastLoopError = nil

	if err := e.update(ctx); err != nil {
		e.setLoopError(err)
		e.notify(LoopDataUpdated)
		return
	}

	if !e.dosingEnabled {
		e.setLoopCompleted()
		e.notify(LoopDataUpdated)
		return
	}

	e.runDosingGate(ctx)
}

// setLoopError records a non-nil last loop error and fires the
// analytics event spec.md §7 ties to that transition.
func (e *Engine) setLoopError(err error) {
	e.lastLoopError = err
	e.logger.AnalyticsEvent("loop_error", map[string]any{"error": err.Error()})
}

// setLoopCompleted records a successful tick and fires both the
// watchdog re-arm and the success analytics event spec.md §7 ties to a
// last-loop-completed transition.
func (e *Engine) setLoopCompleted() {
	e.lastLoopCompleted = e.clock.Now()
	e.logger.AnalyticsEvent("loop_completed", map[string]any{"at": e.lastLoopCompleted})
	if e.notifier != nil {
		e.notifier.LoopHealthy()
	}
}
