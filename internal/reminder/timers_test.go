package reminder

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type firedEvent struct {
	id      string
	payload Payload
}

func newFireRecorder() (FireFunc, chan firedEvent) {
	ch := make(chan firedEvent, 16)
	return func(id string, p Payload) {
		ch <- firedEvent{id: id, payload: p}
	}, ch
}

func waitFired(t *testing.T, ch chan firedEvent) firedEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reminder to fire")
		return firedEvent{}
	}
}

func assertNotFired(t *testing.T, ch chan firedEvent, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected fire for %s", ev.id)
	case <-time.After(wait):
	}
}

func TestTimerDispatcherFiresDueReminder(t *testing.T) {
	fire, fired := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())
	defer d.Stop()

	payload := Payload{MedicationID: "med-1", ScheduleID: "sched-1", DoseTimeID: "time-1"}
	if err := d.Arm("time-1", time.Now().Add(10*time.Millisecond).UnixMilli(), payload); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	ev := waitFired(t, fired)
	if ev.id != "time-1" {
		t.Errorf("fired id = %s, want time-1", ev.id)
	}
	if ev.payload != payload {
		t.Errorf("fired payload = %+v, want %+v", ev.payload, payload)
	}
	if n := d.ArmedCount(); n != 0 {
		t.Errorf("armed count after fire = %d, want 0", n)
	}
}

func TestTimerDispatcherClampsPastInstants(t *testing.T) {
	// An instant that is already due fires immediately instead of being
	// dropped.
	fire, fired := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())
	defer d.Stop()

	if err := d.Arm("time-1", time.Now().Add(-time.Hour).UnixMilli(), Payload{DoseTimeID: "time-1"}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	waitFired(t, fired)
}

func TestTimerDispatcherCancelPreventsFire(t *testing.T) {
	fire, fired := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())
	defer d.Stop()

	if err := d.Arm("time-1", time.Now().Add(30*time.Millisecond).UnixMilli(), Payload{}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := d.Cancel("time-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	assertNotFired(t, fired, 150*time.Millisecond)
	if n := d.ArmedCount(); n != 0 {
		t.Errorf("armed count = %d, want 0", n)
	}
}

func TestTimerDispatcherCancelUnknownIsNoop(t *testing.T) {
	fire, _ := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())
	defer d.Stop()

	if err := d.Cancel("never-armed"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}

func TestTimerDispatcherRearmReplaces(t *testing.T) {
	fire, fired := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())
	defer d.Stop()

	// First arm far in the future, then replace with a due one. Only the
	// replacement fires, exactly once.
	if err := d.Arm("time-1", time.Now().Add(time.Hour).UnixMilli(), Payload{ScheduleID: "old"}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := d.Arm("time-1", time.Now().Add(10*time.Millisecond).UnixMilli(), Payload{ScheduleID: "new"}); err != nil {
		t.Fatalf("re-Arm: %v", err)
	}

	ev := waitFired(t, fired)
	if ev.payload.ScheduleID != "new" {
		t.Errorf("fired payload schedule = %s, want new", ev.payload.ScheduleID)
	}
	assertNotFired(t, fired, 100*time.Millisecond)
}

func TestTimerDispatcherArmedAt(t *testing.T) {
	fire, _ := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())
	defer d.Stop()

	at := time.Now().Add(time.Hour).UnixMilli()
	if err := d.Arm("time-1", at, Payload{}); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	got, ok := d.ArmedAt("time-1")
	if !ok || got != at {
		t.Errorf("ArmedAt = (%d, %v), want (%d, true)", got, ok, at)
	}

	d.Cancel("time-1")
	if _, ok := d.ArmedAt("time-1"); ok {
		t.Error("ArmedAt reports cancelled reminder as armed")
	}
}

func TestTimerDispatcherStopCancelsEverything(t *testing.T) {
	fire, fired := newFireRecorder()
	d := NewTimerDispatcher(fire, zerolog.Nop())

	for _, id := range []string{"a", "b", "c"} {
		if err := d.Arm(id, time.Now().Add(50*time.Millisecond).UnixMilli(), Payload{DoseTimeID: id}); err != nil {
			t.Fatalf("Arm %s: %v", id, err)
		}
	}

	d.Stop()
	if n := d.ArmedCount(); n != 0 {
		t.Errorf("armed count after Stop = %d, want 0", n)
	}
	assertNotFired(t, fired, 150*time.Millisecond)
}
