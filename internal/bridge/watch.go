package bridge

import (
	"context"
	"sync"
)

// Watch initializes the bridge now and again for every page load reported
// on loads. Starting a new initialization cancels the previous one, so a
// pending fallback-button recheck never outlives its page. Watch returns
// when ctx is done or loads is closed.
func (b *Bridge) Watch(ctx context.Context, loads <-chan string) error {
	var (
		wg     sync.WaitGroup
		cancel context.CancelFunc = func() {}
	)
	defer func() {
		cancel()
		wg.Wait()
	}()

	start := func() {
		cancel()
		runCtx, runCancel := context.WithCancel(ctx)
		cancel = runCancel

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Init(runCtx); err != nil && runCtx.Err() == nil {
				b.log.Error().Err(err).Msg("Deal bridge initialization failed")
			}
		}()
	}

	start()
	for {
		select {
		case <-ctx.Done():
			return nil
		case loc, ok := <-loads:
			if !ok {
				return nil
			}
			b.log.Info().Str("url", loc).Msg("Page loaded, re-initializing")
			start()
		}
	}
}
