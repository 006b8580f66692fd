package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Start launches the refresh loop and schedules the first fetch wave.
// An engine starts at most once; Close stops it.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine.Engine.Start: already started")
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.wg.Go(func() { e.runLoop(ctx) })
	e.Refresh()

	log.Info().Dur("interval", e.interval).Msg("engine: refresh loop started")
	return nil
}

// Close stops the refresh loop and waits for the in-flight fetch wave to
// resolve. Closing a never-started engine is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// runLoop serves periodic ticks and coalesced manual triggers. A wave runs
// to completion before the next is considered, so waves never pile up; the
// interval timer restarts after every wave regardless of what caused it.
func (e *Engine) runLoop(ctx context.Context) {
	timer := e.clock.NewTimer(e.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			e.refreshAll(ctx)
			timer.Reset(e.interval)
		case <-e.trigger:
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
			e.refreshAll(ctx)
			timer.Reset(e.interval)
		}
	}
}
