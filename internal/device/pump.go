// Package device implements the pump command surface (engine.DeviceOps)
// behind a circuit breaker, since the pump radio is a fallible,
// process-wide exclusive resource (spec.md §5).
package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openloop/loopengine/internal/clock"
	"github.com/openloop/loopengine/internal/loopmodel"
	"github.com/sony/gobreaker"
)

// Transport is the low-level pump radio link a Pump wraps. A real
// implementation talks to a specific pump model's protocol; this
// package only adds reliability and command-channel bookkeeping on top.
type Transport interface {
	// Connected reports whether the radio currently has line of sight
	// to the pump.
	Connected(ctx context.Context) bool
	SetTempBasal(ctx context.Context, rateUnitsPerHour float64, duration time.Duration) (ackRate float64, timeRemaining time.Duration, err error)
	SetNormalBolus(ctx context.Context, units float64) error
	Tune(ctx context.Context) error
}

// Pump adapts a Transport to engine.DeviceOps, wrapping every command
// dispatch in a gobreaker.CircuitBreaker so a run of radio failures
// trips the breaker instead of blocking the decision queue on repeated
// timeouts.
type Pump struct {
	transport Transport
	breaker   *gobreaker.CircuitBreaker
	clock     clock.Clock

	mu             sync.Mutex
	hasCommandChan bool
	lastTuned      time.Time
}

// NewPump constructs a Pump. hasCommandChannel reflects whether the
// radio/BLE link has been provisioned (spec.md §4.F step 4).
func NewPump(transport Transport, hasCommandChannel bool) *Pump {
	settings := gobreaker.Settings{
		Name:        "pump-radio",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Pump{
		transport:      transport,
		breaker:        gobreaker.NewCircuitBreaker(settings),
		hasCommandChan: hasCommandChannel,
		clock:          clock.System,
	}
}

func (p *Pump) Connected(ctx context.Context) bool {
	return p.transport.Connected(ctx)
}

func (p *Pump) HasCommandChannel(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasCommandChan
}

type tempBasalResult struct {
	ackRate       float64
	timeRemaining time.Duration
}

func (p *Pump) SetTempBasal(ctx context.Context, rateUnitsPerHour float64, duration time.Duration) (float64, time.Duration, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		ackRate, timeRemaining, err := p.transport.SetTempBasal(ctx, rateUnitsPerHour, duration)
		if err != nil {
			return nil, err
		}
		return tempBasalResult{ackRate: ackRate, timeRemaining: timeRemaining}, nil
	})
	if err != nil {
		return 0, 0, wrapCommunicationErr(err)
	}
	r := result.(tempBasalResult)
	return r.ackRate, r.timeRemaining, nil
}

func (p *Pump) SetNormalBolus(ctx context.Context, units float64) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.transport.SetNormalBolus(ctx, units)
	})
	if err != nil {
		return wrapCommunicationErr(err)
	}
	return nil
}

func (p *Pump) LastTuned(ctx context.Context) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTuned
}

func (p *Pump) Tune(ctx context.Context) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.transport.Tune(ctx)
	})
	if err != nil {
		return wrapCommunicationErr(err)
	}
	p.mu.Lock()
	p.lastTuned = p.clock.Now()
	p.mu.Unlock()
	return nil
}

func wrapCommunicationErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &loopmodel.CommunicationError{Detail: "pump radio circuit open", Cause: err}
	}
	return &loopmodel.CommunicationError{Detail: "pump command failed", Cause: err}
}
