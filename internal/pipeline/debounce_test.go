package pipeline

import (
	"testing"
	"time"
)

func TestDebouncerKeepsLastView(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	if d.C() != nil {
		t.Fatal("expected an idle debouncer to have no channel")
	}

	d.trigger(View{Lng: 1, Lat: 1})
	d.trigger(View{Lng: 2, Lat: 2})

	select {
	case <-d.C():
	case <-time.After(time.Second):
		t.Fatal("expected the quiet period to elapse")
	}

	v, ok := d.take()
	if !ok || v.Lng != 2 {
		t.Errorf("expected the last view, got %+v ok=%v", v, ok)
	}
	if _, ok := d.take(); ok {
		t.Error("expected take to clear the pending view")
	}
	if d.C() != nil {
		t.Error("expected no channel after take")
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	d.trigger(View{Lng: 1})
	d.cancel()

	if d.C() != nil {
		t.Error("expected no channel after cancel")
	}
	if _, ok := d.take(); ok {
		t.Error("expected cancel to drop the pending view")
	}

	d.trigger(View{Lng: 3})
	select {
	case <-d.C():
	case <-time.After(time.Second):
		t.Fatal("expected the timer to be reusable after cancel")
	}
}
