package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// interrupted is the cancellation cause recorded when a signal arrives.
type interrupted struct {
	sig os.Signal
}

func (i interrupted) Error() string { return "interrupted by " + i.sig.String() }

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which one.
type SignalContext struct {
	context.Context
	Cancel func()
}

// NewSignalContext derives a SignalContext from parent. Call Cancel to
// release the signal handler.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancelCause(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			cancel(interrupted{sig: sig})
		case <-ctx.Done():
		}
	}()

	return &SignalContext{
		Context: ctx,
		Cancel:  func() { cancel(context.Canceled) },
	}
}

// Signal returns the signal that cancelled the context, or nil when it was
// cancelled some other way or is still running.
func (sc *SignalContext) Signal() os.Signal {
	var i interrupted
	if errors.As(context.Cause(sc.Context), &i) {
		return i.sig
	}
	return nil
}
