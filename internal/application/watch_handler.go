package application

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Watch runs a session, then re-runs it every time the watcher reports a
// change. Every run is a fresh configure pass.
func (s *Service) Watch(ctx context.Context, root string, opts SessionOptions, watcher FileWatcher, callback WatchCallback) error {
	if err := watcher.WatchDir(root); err != nil {
		return errors.Wrap(err, "failed to watch directory")
	}

	runNumber := 1
	runErr := s.RunSession(ctx, opts)
	if callback != nil {
		callback(runNumber, runErr)
	}

	events := watcher.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			runNumber++
			runErr := s.RunSession(ctx, opts)
			if callback != nil {
				callback(runNumber, runErr)
			}
		}
	}
}
