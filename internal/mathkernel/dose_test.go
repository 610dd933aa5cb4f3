package mathkernel

import (
	"testing"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

func TestRecommendTempBasal_HighEventualRaisesRate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pred := loopmodel.Prediction{
		{At: now, MgDL: 150},
		{At: now.Add(time.Hour), MgDL: 220},
	}
	target := loopmodel.Range{Low: 70, High: 150}

	rec := RecommendTempBasal(pred, nil, 3, target, 50, 1, true, now)
	if rec == nil {
		t.Fatal("RecommendTempBasal() = nil, want a correction above the scheduled basal")
	}
	if rec.RateUnitsPerHour <= 1 {
		t.Errorf("RateUnitsPerHour = %v, want > scheduled basal 1", rec.RateUnitsPerHour)
	}
}

func TestRecommendTempBasal_PredictedLowSuspends(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pred := loopmodel.Prediction{
		{At: now, MgDL: 100},
		{At: now.Add(30 * time.Minute), MgDL: 60},
	}
	target := loopmodel.Range{Low: 70, High: 150}

	rec := RecommendTempBasal(pred, nil, 3, target, 50, 1, true, now)
	if rec == nil {
		t.Fatal("RecommendTempBasal() = nil, want an explicit zero-rate suspend recommendation")
	}
	if rec.RateUnitsPerHour != 0 {
		t.Errorf("RateUnitsPerHour = %v, want 0 when a predictive low is imminent", rec.RateUnitsPerHour)
	}
}

func TestRecommendTempBasal_SuppressesSmallChange(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pred := loopmodel.Prediction{
		{At: now, MgDL: 100},
		{At: now.Add(time.Hour), MgDL: 100},
	}
	target := loopmodel.Range{Low: 70, High: 150}
	lastTemp := &loopmodel.TempBasal{Start: now.Add(-10 * time.Minute), End: now.Add(20 * time.Minute), RateUnitsPerHour: 1}

	rec := RecommendTempBasal(pred, lastTemp, 3, target, 50, 1, true, now)
	if rec != nil {
		t.Errorf("RecommendTempBasal() = %+v, want nil when within the oscillation-avoidance band of the running temp", rec)
	}
}

func TestRecommendBolus_PendingBolusSuppression(t *testing.T) {
	pred := loopmodel.Prediction{{MgDL: 250}}
	target := loopmodel.Range{Low: 70, High: 150}

	got := RecommendBolus(pred, 0, 10, target, 50)
	if got <= 0 {
		t.Fatalf("RecommendBolus() = %v, want positive correction for a high reading", got)
	}

	gotWithIOB := RecommendBolus(pred, got, 10, target, 50)
	if gotWithIOB != 0 {
		t.Errorf("RecommendBolus() with iob equal to the full correction = %v, want 0", gotWithIOB)
	}
}

func TestRecommendBolus_BelowTargetHighIsZero(t *testing.T) {
	pred := loopmodel.Prediction{{MgDL: 120}}
	target := loopmodel.Range{Low: 70, High: 150}
	if got := RecommendBolus(pred, 0, 10, target, 50); got != 0 {
		t.Errorf("RecommendBolus() = %v, want 0 when current reading is within target", got)
	}
}
