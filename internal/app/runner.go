package app

import "context"

// Runnable is a long running component stopped by cancelling its context.
type Runnable interface {
	Run(ctx context.Context) error
}

// runner tracks a Runnable started in its own goroutine so shutdown waits
// for it at most once.
type runner struct {
	errc   chan error
	exited bool
}

func startRunner(ctx context.Context, r Runnable) *runner {
	rn := &runner{errc: make(chan error, 1)}
	go func() {
		rn.errc <- r.Run(ctx)
	}()
	return rn
}

// Done delivers the Run error once. Call markExited after receiving from it.
func (r *runner) Done() <-chan error {
	return r.errc
}

func (r *runner) markExited() {
	r.exited = true
}

// Wait blocks until Run returns or ctx is done. It returns at once when the
// exit was already observed.
func (r *runner) Wait(ctx context.Context) error {
	if r.exited {
		return nil
	}
	select {
	case <-r.errc:
		r.exited = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
