// Package loopmodel contains the data types shared by the loop decision
// engine and its collaborators: glucose samples, effect series,
// predictions, recommendations, and configuration snapshots.
package loopmodel

import "time"

// GlucoseSample is a single glucose reading, ordered by At.
type GlucoseSample struct {
	At     time.Time
	MgDL   float64
	Source string // sensor/device identifier, for audit only
}

// ValueMmolL returns the sample value in mmol/L.
func (g GlucoseSample) ValueMmolL() float64 {
	return g.MgDL / 18.0182
}

// PumpStatus is the most recently observed pump telemetry snapshot.
type PumpStatus struct {
	At            time.Time // pump-clock timestamp
	TimeRemaining time.Duration
}
