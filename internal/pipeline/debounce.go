package pipeline

import "time"

// debouncer coalesces views arriving within delay of each other into the
// last one. It is driven from the coordinator's select loop.
type debouncer struct {
	delay   time.Duration
	timer   *time.Timer
	pending *View
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// trigger records v and restarts the quiet period.
func (d *debouncer) trigger(v View) {
	d.pending = &v
	if d.timer == nil {
		d.timer = time.NewTimer(d.delay)
		return
	}
	d.timer.Reset(d.delay)
}

// C fires once the quiet period elapses. It is nil while idle.
func (d *debouncer) C() <-chan time.Time {
	if d.timer == nil || d.pending == nil {
		return nil
	}
	return d.timer.C
}

// take returns the pending view and clears it.
func (d *debouncer) take() (View, bool) {
	if d.pending == nil {
		return View{}, false
	}
	v := *d.pending
	d.pending = nil
	return v, true
}

func (d *debouncer) cancel() {
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
