package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context canceled on the first SIGINT or
// SIGTERM. A second signal exits the process with ExitInterrupted, so a
// watch session blocked in a long build can still be stopped.
func SetupSignalHandler() context.Context {
	ctx, _ := notifyContext(os.Exit)
	return ctx
}

// notifyContext is SetupSignalHandler with a replaceable exit. stop
// detaches the handler.
func notifyContext(exit func(code int)) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigs:
			exit(ExitInterrupted)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		close(done)
		cancel()
	}
}
