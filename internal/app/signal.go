package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"logremap/pkg/logger"
)

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGHUP and
// returns a cancellable context. The context is cancelled when an
// interrupt or terminate arrives; SIGHUP invokes onHup instead, which the
// watch mode points at the reloader to force a recompile without a
// restart.
func SetupSignalHandler(parent context.Context, onHup func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("signal_received", "signal", "hangup", "msg", "script reload requested")
			if onHup != nil {
				onHup()
			}
		}
	}()

	return ctx, cancel
}
