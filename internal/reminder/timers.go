package reminder

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FireFunc is called when an armed timer elapses. It runs on the timer's
// goroutine.
type FireFunc func(reminderID string, payload Payload)

type armedTimer struct {
	timer   *time.Timer
	ver     uint64
	at      int64
	payload Payload
}

// TimerDispatcher arms reminders as in-process timers. Timers do not
// survive restarts; the coordinator re-arms everything at boot. Each id
// carries a version counter so a callback that lost a race with re-arm or
// cancel is ignored.
type TimerDispatcher struct {
	mu     sync.Mutex
	timers map[string]*armedTimer
	vers   map[string]uint64
	fire   FireFunc
	log    zerolog.Logger
}

func NewTimerDispatcher(fire FireFunc, log zerolog.Logger) *TimerDispatcher {
	return &TimerDispatcher{
		timers: make(map[string]*armedTimer),
		vers:   make(map[string]uint64),
		fire:   fire,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *TimerDispatcher) Arm(reminderID string, firesAt int64, payload Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.timers[reminderID]; ok {
		old.timer.Stop()
	}
	d.vers[reminderID]++
	ver := d.vers[reminderID]

	delay := time.Until(time.UnixMilli(firesAt))
	if delay < 0 {
		delay = 0
	}

	entry := &armedTimer{ver: ver, at: firesAt, payload: payload}
	entry.timer = time.AfterFunc(delay, func() { d.elapsed(reminderID, ver) })
	d.timers[reminderID] = entry

	d.log.Debug().Str("reminder_id", reminderID).Int64("fires_at", firesAt).Msg("armed")
	return nil
}

func (d *TimerDispatcher) Cancel(reminderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.timers[reminderID]; ok {
		entry.timer.Stop()
		delete(d.timers, reminderID)
		d.vers[reminderID]++
		d.log.Debug().Str("reminder_id", reminderID).Msg("cancelled")
	}
	return nil
}

func (d *TimerDispatcher) elapsed(reminderID string, ver uint64) {
	d.mu.Lock()
	entry, ok := d.timers[reminderID]
	if !ok || entry.ver != ver {
		// Re-armed or cancelled while this callback was in flight.
		d.mu.Unlock()
		return
	}
	delete(d.timers, reminderID)
	payload := entry.payload
	d.mu.Unlock()

	if d.fire != nil {
		d.fire(reminderID, payload)
	}
}

// ArmedAt reports the instant a reminder is armed for, if any.
func (d *TimerDispatcher) ArmedAt(reminderID string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.timers[reminderID]
	if !ok {
		return 0, false
	}
	return entry.at, true
}

// ArmedCount reports how many reminders are currently armed.
func (d *TimerDispatcher) ArmedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every armed timer. Used on shutdown.
func (d *TimerDispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, entry := range d.timers {
		entry.timer.Stop()
		delete(d.timers, id)
		d.vers[id]++
	}
}
