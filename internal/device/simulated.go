package device

import (
	"context"
	"time"
)

// SimulatedTransport is a Transport that always succeeds, standing in
// for a real pump radio driver so the daemon is runnable without
// hardware. Real deployments replace this with a model-specific
// transport behind the same interface.
type SimulatedTransport struct{}

// NewSimulatedTransport constructs a SimulatedTransport.
func NewSimulatedTransport() *SimulatedTransport { return &SimulatedTransport{} }

func (s *SimulatedTransport) Connected(ctx context.Context) bool { return true }

func (s *SimulatedTransport) SetTempBasal(ctx context.Context, rateUnitsPerHour float64, duration time.Duration) (float64, time.Duration, error) {
	return rateUnitsPerHour, duration, nil
}

func (s *SimulatedTransport) SetNormalBolus(ctx context.Context, units float64) error {
	return nil
}

func (s *SimulatedTransport) Tune(ctx context.Context) error {
	return nil
}
