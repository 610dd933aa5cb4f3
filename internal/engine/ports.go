// Package engine implements the Loop Decision Engine: the Effect Cache,
// Invalidation Graph, Refresh Coordinator, Decision Pipeline, Event
// Ingress, and Dosing Gate described in spec.md. It consumes every
// collaborator only through the interfaces declared in this file.
package engine

import (
	"context"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// GlucoseStore is the out-of-scope collaborator providing the latest
// glucose sample and the momentum effect calculator.
type GlucoseStore interface {
	LatestGlucose(ctx context.Context) (*loopmodel.GlucoseSample, error)
	RecentMomentumEffect(ctx context.Context, anchor time.Time) (loopmodel.EffectSeries, error)
}

// CarbStore is the out-of-scope collaborator for carbohydrate entries
// and their modeled glucose effect.
type CarbStore interface {
	GlucoseEffects(ctx context.Context, startAfter time.Time) (loopmodel.EffectSeries, error)
	AddCarbEntry(ctx context.Context, grams float64, at time.Time) error
}

// DoseStore is the out-of-scope collaborator for insulin dose history
// and its modeled glucose effect.
type DoseStore interface {
	GlucoseEffects(ctx context.Context, startAfter time.Time) (loopmodel.EffectSeries, error)
}

// PumpStatusProvider reports the most recently observed pump telemetry.
type PumpStatusProvider interface {
	Latest(ctx context.Context) (*loopmodel.PumpStatus, error)
}

// DeviceOps is the pump command surface used by the Dosing Gate.
type DeviceOps interface {
	// Connected reports whether a pump device is currently reachable.
	Connected(ctx context.Context) bool
	// HasCommandChannel reports whether the connected device has a
	// configured command channel (radio/BLE link provisioned).
	HasCommandChannel(ctx context.Context) bool
	SetTempBasal(ctx context.Context, rateUnitsPerHour float64, duration time.Duration) (ackRate float64, timeRemaining time.Duration, err error)
	SetNormalBolus(ctx context.Context, units float64) error
	LastTuned(ctx context.Context) time.Time
	Tune(ctx context.Context) error
}

// ConfigProvider supplies the configuration snapshot at decision time.
// Any field may be zero/absent if not yet configured.
type ConfigProvider interface {
	Snapshot(ctx context.Context) loopmodel.ConfigSnapshot
}

// MathKernel is the out-of-scope collaborator for prediction and
// recommendation math, injected so the engine never imports the
// concrete mathkernel package directly (keeps the hard core decoupled
// from any one math implementation, per spec.md §1's scoping).
type MathKernel interface {
	Predict(latest loopmodel.GlucoseSample, momentum, carbs, insulin loopmodel.EffectSeries) loopmodel.Prediction
	RecommendTempBasal(pred loopmodel.Prediction, lastTemp *loopmodel.TempBasal, maxBasal float64, target loopmodel.Range, isf float64, scheduledBasal float64, allowPredictiveLow bool, now time.Time) *loopmodel.Recommendation
	RecommendBolus(pred loopmodel.Prediction, iob, maxBolus float64, target loopmodel.Range, isf float64) float64
}

// Logger is the structured logging sink used for decision records and
// analytics events (spec.md §4.D.7, §7).
type Logger interface {
	DecisionRecord(fields DecisionFields)
	AnalyticsEvent(name string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}

// DecisionFields captures one decision-pipeline cycle for the structured
// log record required by spec.md §4.D.7.
type DecisionFields struct {
	CycleID        string
	Latest         *loopmodel.GlucoseSample
	Err            error
	Prediction     loopmodel.Prediction
	Recommendation *loopmodel.Recommendation
}

// Notifier is the out-of-scope collaborator for user-facing
// notifications (watchdog alerts) referenced by spec.md §7.
type Notifier interface {
	LoopNotRunning(lastCompleted time.Time)
	LoopHealthy()
}
