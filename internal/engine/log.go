package engine

import (
	"go.uber.org/zap"
)

// ZapLogger adapts *zap.Logger to the engine's Logger port, emitting the
// structured decision record spec.md §4.D.7 requires each time update()
// computes a prediction (success or failure) and the analytics events §7 ties to last-loop-error and
// last-loop-completed transitions.
type ZapLogger struct {
	base *zap.Logger
}

// NewZapLogger wraps base. Pass zap.NewProduction() or similar from the
// caller so the daemon controls sinks and log level in one place.
func NewZapLogger(base *zap.Logger) *ZapLogger {
	return &ZapLogger{base: base}
}

func (l *ZapLogger) DecisionRecord(f DecisionFields) {
	fields := []zap.Field{zap.String("cycle_id", f.CycleID)}
	if f.Latest != nil {
		fields = append(fields, zap.Float64("latest_glucose_mgdl", f.Latest.MgDL))
	}
	if f.Err != nil {
		fields = append(fields, zap.Error(f.Err))
	}
	if len(f.Prediction) > 0 {
		fields = append(fields, zap.Float64("eventual_glucose_mgdl", f.Prediction[len(f.Prediction)-1].MgDL))
	}
	if f.Recommendation != nil {
		fields = append(fields,
			zap.Float64("recommended_rate_units_per_hour", f.Recommendation.RateUnitsPerHour),
			zap.Duration("recommended_duration", f.Recommendation.Duration),
		)
	}
	l.base.Info("decision cycle settled", fields...)
}

func (l *ZapLogger) AnalyticsEvent(name string, fields map[string]any) {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.base.Info("analytics: "+name, zapFields...)
}

func (l *ZapLogger) Error(msg string, err error, fields map[string]any) {
	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.Error(err))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.base.Error(msg, zapFields...)
}
