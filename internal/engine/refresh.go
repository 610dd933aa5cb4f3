package engine

import (
	"context"
	"time"

	"github.com/openloop/loopengine/internal/loopmodel"
	"golang.org/x/sync/errgroup"
)

// refreshMissing is the Refresh Coordinator of spec.md §4.C. For each of
// the three effect slots currently unset, it launches a request to the
// corresponding collaborator store with the latest glucose sample's
// timestamp as the anchor. The three requests run in parallel via
// errgroup; refreshMissing returns only once all have completed, success
// or failure, and a failure on one slot never aborts the others.
//
// Per spec.md §5, the outbound calls are the only part that runs off the
// decision queue: each goroutine only performs I/O and hands its result
// back through a local variable, never touching the cache directly. The
// cache assignments (which is where the invalidation graph fires) happen
// here, after g.Wait() rejoins the calling decision-queue step, so they
// stay serialized with every other mutation of engine state.
func (e *Engine) refreshMissing(ctx context.Context, anchor time.Time) {
	var g errgroup.Group

	var momentumSeries loopmodel.EffectSeries
	var momentumErr error
	needMomentum := e.cache.momentum == nil
	if needMomentum {
		g.Go(func() error {
			momentumSeries, momentumErr = e.fetchMomentum(ctx, anchor)
			return nil
		})
	}

	var carbsSeries loopmodel.EffectSeries
	var carbsErr error
	needCarbs := e.cache.carbs == nil
	if needCarbs {
		g.Go(func() error {
			carbsSeries, carbsErr = e.fetchCarbs(ctx, anchor)
			return nil
		})
	}

	var insulinSeries loopmodel.EffectSeries
	var insulinErr error
	needInsulin := e.cache.insulin == nil
	if needInsulin {
		g.Go(func() error {
			insulinSeries, insulinErr = e.fetchInsulin(ctx, anchor)
			return nil
		})
	}

	_ = g.Wait()

	if needMomentum {
		if momentumErr != nil {
			e.logger.Error("refresh momentum failed", momentumErr, nil)
		}
		e.cache.assignMomentum(momentumSeries, momentumErr == nil)
	}
	if needCarbs {
		if carbsErr != nil {
			e.logger.Error("refresh carbs failed", carbsErr, nil)
		}
		e.cache.assignCarbs(carbsSeries, carbsErr == nil)
	}
	if needInsulin {
		if insulinErr != nil {
			e.logger.Error("refresh insulin failed", insulinErr, nil)
		}
		e.cache.assignInsulin(insulinSeries, insulinErr == nil, e.clock.Now())
	}
}

func (e *Engine) fetchMomentum(ctx context.Context, anchor time.Time) (loopmodel.EffectSeries, error) {
	if e.glucose == nil {
		return nil, loopmodel.NewMissingData("glucose store not available")
	}
	return e.glucose.RecentMomentumEffect(ctx, anchor)
}

func (e *Engine) fetchCarbs(ctx context.Context, anchor time.Time) (loopmodel.EffectSeries, error) {
	if e.carbs == nil {
		return nil, loopmodel.NewMissingData("carb store not available")
	}
	return e.carbs.GlucoseEffects(ctx, anchor)
}

func (e *Engine) fetchInsulin(ctx context.Context, anchor time.Time) (loopmodel.EffectSeries, error) {
	if e.doses == nil {
		return nil, loopmodel.NewMissingData("dose store not available")
	}
	return e.doses.GlucoseEffects(ctx, anchor)
}
