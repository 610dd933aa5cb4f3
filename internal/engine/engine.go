package engine

import (
	"context"
	"time"

	"github.com/openloop/loopengine/internal/clock"
	"github.com/openloop/loopengine/internal/loopmodel"
)

const (
	// recencyInterval is the freshness window for glucose and
	// pump-status inputs (spec.md §6).
	recencyInterval = 15 * time.Minute
	// recommendationFreshness is how long a recommendation may sit
	// before it can no longer be enacted (spec.md §6).
	recommendationFreshness = 5 * time.Minute
	// defaultSentryQuietWindow is the delay after PumpStatusUpdated
	// before the loop actually runs, avoiding the pump's telemetry burst
	// (spec.md §6). Engine.sentryQuietWindow defaults to this; tests
	// shrink it via Deps.SentryQuietWindow to avoid real-time sleeps.
	defaultSentryQuietWindow = 11 * time.Second
	// allowPredictiveTempBelowRange is always true per spec.md §6.
	allowPredictiveTempBelowRange = true
)

// Engine is the Loop Decision Engine of spec.md: it owns the Effect
// Cache, runs the Decision Pipeline, and enforces the Dosing Gate. All
// mutation of its state happens on a single-consumer command channel
// (the "decision queue" of spec.md §5) so that at most one logical step
// touches engine state at a time; there is no lock.
type Engine struct {
	glucose    GlucoseStore
	carbs      CarbStore
	doses      DoseStore
	pumpStatus PumpStatusProvider
	device     DeviceOps
	config     ConfigProvider
	math       MathKernel
	logger     Logger
	notifier   Notifier
	clock      clock.Clock

	sentryQuietWindow time.Duration

	cmdCh  chan func()
	stopCh chan struct{}
	done   chan struct{}

	sentryTimer *time.Timer

	cache            effectCache
	dosingEnabled    bool
	waitingForSentry bool

	lastLoopCompleted time.Time
	lastLoopError     error

	observers *observerBus
}

// Deps groups the collaborators an Engine is constructed with, mirroring
// the "Inbound from collaborators" list of spec.md §6.
type Deps struct {
	Glucose    GlucoseStore
	Carbs      CarbStore
	Doses      DoseStore
	PumpStatus PumpStatusProvider
	Device     DeviceOps
	Config     ConfigProvider
	Math       MathKernel
	Logger     Logger
	Notifier   Notifier
	Clock      clock.Clock
	// SentryQuietWindow overrides defaultSentryQuietWindow; zero keeps the default.
	SentryQuietWindow time.Duration
}

// New constructs an Engine. It does not start the decision queue; call
// Start for that.
func New(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = clock.System
	}
	quiet := d.SentryQuietWindow
	if quiet == 0 {
		quiet = defaultSentryQuietWindow
	}
	return &Engine{
		glucose:           d.Glucose,
		carbs:             d.Carbs,
		doses:             d.Doses,
		pumpStatus:        d.PumpStatus,
		device:            d.Device,
		config:            d.Config,
		math:              d.Math,
		logger:            d.Logger,
		notifier:          d.Notifier,
		clock:             d.Clock,
		sentryQuietWindow: quiet,
		cmdCh:             make(chan func()),
		stopCh:            make(chan struct{}),
		done:              make(chan struct{}),
		observers:         newObserverBus(),
	}
}

// Start launches the decision-queue worker goroutine. It must be called
// before any ingress or pipeline method is used.
func (e *Engine) Start() {
	go e.run()
}

// Stop cancels the decision queue (commands not yet taken by the worker
// are dropped), releases any pending sentry timer, and closes every
// registered observer channel (spec.md §9: observer subscriptions
// released at teardown).
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.done
	if e.sentryTimer != nil {
		e.sentryTimer.Stop()
	}
	// The worker has exited, so nothing else touches the observer bus.
	e.observers.closeAll()
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.cmdCh:
			fn()
		case <-e.stopCh:
			return
		}
	}
}

// submit enqueues fn on the decision queue without waiting for it to run.
func (e *Engine) submit(fn func()) {
	select {
	case e.cmdCh <- fn:
	case <-e.stopCh:
	}
}

// submitAndWait enqueues fn and blocks until it has executed.
func (e *Engine) submitAndWait(fn func()) {
	done := make(chan struct{})
	e.submit(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-e.stopCh:
	}
}

// SetDosingEnabled sets the engine's in-memory dosingEnabled flag and
// triggers a LoopDataUpdated notification. The value is not persisted:
// it lasts for the life of this Engine only.
func (e *Engine) SetDosingEnabled(enabled bool) {
	e.submitAndWait(func() {
		e.dosingEnabled = enabled
		e.notify(LoopDataUpdated)
	})
}

// Subscribe registers ch to receive outbound signals and returns an
// unsubscribe function. ch should be buffered; slow consumers drop events.
func (e *Engine) Subscribe(ch chan<- EventKind) (cancel func()) {
	var fn func()
	e.submitAndWait(func() { fn = e.observers.subscribe(ch) })
	return func() { e.submitAndWait(fn) }
}

// notify publishes kind unless the engine is waiting out the post-sentry
// delay, per spec.md §4.E: "notify() is suppressed while waitingForSentry
// is true".
func (e *Engine) notify(kind EventKind) {
	if kind == LoopDataUpdated && e.waitingForSentry {
		return
	}
	e.observers.publish(kind)
}

// Status is the read model returned by GetStatus.
type Status struct {
	Prediction        loopmodel.Prediction
	Recommendation    *loopmodel.Recommendation
	LastTempBasal     *loopmodel.TempBasal
	LastLoopCompleted time.Time
	LastLoopError     error
}

// GetStatus runs update() under serial access and returns the settled
// read model, without enacting dosing (spec.md §4.D).
func (e *Engine) GetStatus(ctx context.Context) Status {
	var st Status
	e.submitAndWait(func() {
		err := e.update(ctx)
		if e.cache.prediction != nil {
			st.Prediction = *e.cache.prediction
		}
		st.Recommendation = e.cache.recommendation
		st.LastTempBasal = e.cache.lastTemp
		st.LastLoopCompleted = e.lastLoopCompleted
		if err != nil {
			st.LastLoopError = err
		} else {
			st.LastLoopError = e.lastLoopError
		}
	})
	return st
}
