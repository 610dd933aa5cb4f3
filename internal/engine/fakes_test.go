package engine

import (
	"context"
	"sync"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

type fakeGlucoseStore struct {
	sample         *loopmodel.GlucoseSample
	sampleErr      error
	momentum       loopmodel.EffectSeries
	momentumErr    error
	momentumCalled int
}

func (f *fakeGlucoseStore) LatestGlucose(ctx context.Context) (*loopmodel.GlucoseSample, error) {
	return f.sample, f.sampleErr
}

func (f *fakeGlucoseStore) RecentMomentumEffect(ctx context.Context, anchor time.Time) (loopmodel.EffectSeries, error) {
	f.momentumCalled++
	return f.momentum, f.momentumErr
}

type fakeCarbStore struct {
	effects    loopmodel.EffectSeries
	effectsErr error
	added      []float64
}

func (f *fakeCarbStore) GlucoseEffects(ctx context.Context, startAfter time.Time) (loopmodel.EffectSeries, error) {
	return f.effects, f.effectsErr
}

func (f *fakeCarbStore) AddCarbEntry(ctx context.Context, grams float64, at time.Time) error {
	f.added = append(f.added, grams)
	return nil
}

type fakeDoseStore struct {
	effects    loopmodel.EffectSeries
	effectsErr error
}

func (f *fakeDoseStore) GlucoseEffects(ctx context.Context, startAfter time.Time) (loopmodel.EffectSeries, error) {
	return f.effects, f.effectsErr
}

type fakePumpStatusProvider struct {
	status *loopmodel.PumpStatus
	err    error
}

func (f *fakePumpStatusProvider) Latest(ctx context.Context) (*loopmodel.PumpStatus, error) {
	return f.status, f.err
}

type fakeDevice struct {
	mu sync.Mutex

	connected      bool
	hasCommandChan bool

	ackRate       float64
	timeRemaining time.Duration
	setTempErr    error
	tempCalls     int

	bolusErr   error
	bolusCalls []float64

	lastTuned time.Time
	tuneCalls int
}

func (f *fakeDevice) Connected(ctx context.Context) bool { return f.connected }

func (f *fakeDevice) HasCommandChannel(ctx context.Context) bool { return f.hasCommandChan }

func (f *fakeDevice) SetTempBasal(ctx context.Context, rate float64, duration time.Duration) (float64, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tempCalls++
	if f.setTempErr != nil {
		return 0, 0, f.setTempErr
	}
	return f.ackRate, f.timeRemaining, nil
}

func (f *fakeDevice) SetNormalBolus(ctx context.Context, units float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bolusCalls = append(f.bolusCalls, units)
	return f.bolusErr
}

func (f *fakeDevice) LastTuned(ctx context.Context) time.Time { return f.lastTuned }

func (f *fakeDevice) Tune(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tuneCalls++
	return nil
}

type fakeConfigProvider struct {
	snap loopmodel.ConfigSnapshot
}

func (f *fakeConfigProvider) Snapshot(ctx context.Context) loopmodel.ConfigSnapshot { return f.snap }

type fakeLogger struct {
	mu      sync.Mutex
	records []DecisionFields
	events  []string
	errors  []error
}

func (f *fakeLogger) DecisionRecord(fields DecisionFields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, fields)
}

func (f *fakeLogger) AnalyticsEvent(name string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
}

func (f *fakeLogger) Error(msg string, err error, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, err)
}

type fakeNotifier struct {
	mu             sync.Mutex
	healthyCalls   int
	notRunningCall int
}

func (f *fakeNotifier) LoopHealthy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthyCalls++
}

func (f *fakeNotifier) LoopNotRunning(lastCompleted time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notRunningCall++
}

// defaultConfigSnapshot returns a minimal complete configuration usable
// by most scenarios: a flat target range, sensitivity, and basal schedule.
func defaultConfigSnapshot() loopmodel.ConfigSnapshot {
	return loopmodel.ConfigSnapshot{
		MaxBasalUnitsPerHour: 3,
		MaxBolusUnits:        10,
		TargetRange:          loopmodel.Schedule[loopmodel.Range]{{Start: 0, Value: loopmodel.Range{Low: 70, High: 150}}},
		Sensitivity:          loopmodel.Schedule[float64]{{Start: 0, Value: 50}},
		BasalSchedule:        loopmodel.Schedule[float64]{{Start: 0, Value: 1}},
	}
}
