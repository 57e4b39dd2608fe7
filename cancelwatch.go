// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"io"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc arranges for an [io.Closer] to be closed when the context
// is done (cancelled or deadline exceeded). Connector runners use
// this to bind a fabric subscription's lifetime to the runner's context, so
// that a blocked [ReceiverRunner] wakes up promptly on [RunnerManager.Kill]
// rather than waiting for the fabric client's own timeout.
//
// The returned closer wraps the input. Closing it unregisters the context
// watcher and closes the underlying resource, so no goroutine leaks even if
// the context is never cancelled.
type CancelWatchFunc struct{}

var _ Func[io.Closer, io.Closer] = &CancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc] that closes the
// resource when the context is done. The returned [io.Closer] wraps the
// input: closing it unregisters the watcher and closes the underlying
// resource.
func (op *CancelWatchFunc) Call(ctx context.Context, closer io.Closer) (io.Closer, error) {
	stop := context.AfterFunc(ctx, func() {
		closer.Close()
	})
	return &cancelWatchedCloser{Closer: closer, stop: stop}, nil
}

// cancelWatchedCloser wraps an [io.Closer] with a context cancellation watcher.
type cancelWatchedCloser struct {
	io.Closer
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying resource.
func (c *cancelWatchedCloser) Close() error {
	c.stop()
	return c.Closer.Close()
}
