package engine

import (
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
)

// effectCache is the Effect Cache of spec.md §4.A: a bag of four optional
// slots plus a recommendation, mutated only through assign* methods so
// that every write funnels through the invalidation graph (§4.B) as an
// explicit state-transition function rather than scattered setters.
type effectCache struct {
	momentum *loopmodel.EffectSeries
	carbs    *loopmodel.EffectSeries
	insulin  *loopmodel.EffectSeries

	prediction     *loopmodel.Prediction
	recommendation *loopmodel.Recommendation

	lastTemp  *loopmodel.TempBasal
	lastBolus *loopmodel.BolusRecord
}

// assignMomentum, assignCarbs and assignInsulin install a new effect
// series (or nil to clear it) and apply the invalidation-graph
// propagation of §4.B: any effect assignment clears prediction, and
// insulin assignment additionally inspects last bolus for expiry.

func (c *effectCache) assignMomentum(s loopmodel.EffectSeries, ok bool) {
	c.momentum = optionalSeries(s, ok)
	c.clearPrediction()
}

func (c *effectCache) assignCarbs(s loopmodel.EffectSeries, ok bool) {
	c.carbs = optionalSeries(s, ok)
	c.clearPrediction()
}

func (c *effectCache) assignInsulin(s loopmodel.EffectSeries, ok bool, now time.Time) {
	c.insulin = optionalSeries(s, ok)
	c.clearPrediction()
	if c.lastBolus != nil && c.lastBolus.IsExpired(now) {
		c.lastBolus = nil
	}
}

func optionalSeries(s loopmodel.EffectSeries, ok bool) *loopmodel.EffectSeries {
	if !ok {
		return nil
	}
	return &s
}

// assignPrediction installs the prediction and clears the recommendation
// (§4.B: assigning prediction clears recommendation).
func (c *effectCache) assignPrediction(p loopmodel.Prediction) {
	c.prediction = &p
	c.recommendation = nil
}

// clearPrediction clears both prediction and, transitively, recommendation.
func (c *effectCache) clearPrediction() {
	c.prediction = nil
	c.recommendation = nil
}

func (c *effectCache) assignRecommendation(r *loopmodel.Recommendation) {
	c.recommendation = r
}

// effectsComplete reports whether all three effect slots are populated
// (invariant 1 of §3/§8: if any is none, prediction must be none).
func (c *effectCache) effectsComplete() bool {
	return c.momentum != nil && c.carbs != nil && c.insulin != nil
}
