package main

import (
	"context"
	"errors"
	"log/slog"
)

var errPermissionDenied = errors.New("accessibility permission denied")

// runHeadless drives the startup flow without a window: alerts are shown
// with osascript and the run ends once the hotkey cannot be used. It returns
// the reason for that, or nil after a shutdown request.
func (a *App) runHeadless() error {
	ctx, cancel := context.WithCancelCause(context.Background())
	a.mu.Lock()
	a.cancel = func() { cancel(nil) }
	a.mu.Unlock()

	a.run(ctx, func() {
		go func() {
			if err := a.setupHotkey(ctx); err != nil {
				a.logf(slog.LevelError, "hotkey unavailable: %v", err)
				cancel(err)
			}
		}()
	}, func() { cancel(errPermissionDenied) })

	<-ctx.Done()
	a.logger.Info("headless run finished")
	if err := context.Cause(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
