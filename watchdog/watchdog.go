// package watchdog reconciles the announced space state with the
// observed door state. The space status expresses intent, the lock
// bolt expresses reality; the only unsafe combination is a space
// declared closed above a door still unlocked. The watchdog answers
// that with an audible countdown and lock commands until the bolt
// reports engaged.
package watchdog

import (
	"log"
	"sync"
	"time"

	"netz39.org/gatekeeper/schedule"
)

// State of the supervision automaton.
type State int

const (
	// Boot collects facts; it is left once both the space status and
	// the lock state have been observed.
	Boot State = iota
	// Open: the space is declared open, the door may do as it
	// pleases.
	Open
	// Countdown: the space is closed but the door is unlocked; a lock
	// deadline is running.
	Countdown
	// Locked: closed and locked, the stable night state.
	Locked
)

var stateNames = [...]string{
	Boot:      "BOOT",
	Open:      "OPEN",
	Countdown: "COUNTDOWN",
	Locked:    "LOCKED",
}

func (s State) String() string {
	return stateNames[s]
}

const (
	// gracePeriod is the time occupants get to lock up themselves
	// after the space closes.
	gracePeriod = 30 * time.Second
	// retryPeriod is the pause between lock attempts once the grace
	// period has run out.
	retryPeriod = 10 * time.Second
	// beepInterval paces the audible alerts of a countdown.
	beepInterval = 5 * time.Second
)

// Actions binds the watchdog to the outside world. Lock asks the
// door service to engage the lock; Beep sounds one audible alert.
// Both are called from the main loop and must not block.
type Actions struct {
	Lock func()
	Beep func()
}

// Watchdog is the supervision automaton. Fact setters are safe to
// call from the bus goroutine; Step and the queue belong to the main
// loop.
type Watchdog struct {
	actions Actions
	queue   *schedule.Queue
	now     func() time.Time

	mu          sync.Mutex
	state       State
	spaceOpen   *bool
	locked      *bool
	deadline    time.Time
	hasDeadline bool
	beeps       []schedule.Handle
}

func New(queue *schedule.Queue, actions Actions) *Watchdog {
	return &Watchdog{
		actions: actions,
		queue:   queue,
		now:     time.Now,
	}
}

// State returns the current automaton state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetSpaceOpen records the announced space status.
func (w *Watchdog) SetSpaceOpen(open bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.spaceOpen == nil || *w.spaceOpen != open {
		log.Printf("watchdog: space announced %s", openWord(open))
	}
	w.spaceOpen = &open
}

func openWord(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

// HandleSpaceMessage interprets an isOpen payload. Only the literal
// "true" counts as open.
func (w *Watchdog) HandleSpaceMessage(payload string) {
	w.SetSpaceOpen(payload == "true")
}

// HandleDoorEvent derives the lock fact from a door event. An open or
// unlocked door is known unlocked, a locked bolt is known locked; a
// "door closed" alone says nothing about the bolt.
func (w *Watchdog) HandleDoorEvent(payload string) {
	switch payload {
	case "door open", "door unlocked":
		w.setLocked(false)
	case "door locked":
		w.setLocked(true)
	}
}

func (w *Watchdog) setLocked(locked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.locked = &locked
}

// Step runs one supervision tick. It dispatches on the current state,
// checking abort conditions before advancing a countdown, so a
// reopened space or an engaged bolt always wins over a pending
// deadline.
func (w *Watchdog) Step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Boot:
		w.stepBoot()
	case Open:
		w.stepOpen()
	case Countdown:
		w.stepCountdown()
	case Locked:
		w.stepLocked()
	}
}

func (w *Watchdog) transition(next State) {
	log.Printf("watchdog: %v -> %v", w.state, next)
	w.state = next
}

func (w *Watchdog) spaceIsOpen() bool {
	return w.spaceOpen != nil && *w.spaceOpen
}

func (w *Watchdog) lockIsClosed() bool {
	return w.locked != nil && *w.locked
}

func (w *Watchdog) stepBoot() {
	if w.spaceOpen == nil || w.locked == nil {
		return
	}
	switch {
	case *w.spaceOpen:
		w.transition(Open)
	case *w.locked:
		w.transition(Locked)
	default:
		w.transition(Countdown)
	}
}

func (w *Watchdog) stepOpen() {
	if w.spaceIsOpen() {
		return
	}
	if w.lockIsClosed() {
		w.transition(Locked)
	} else {
		w.transition(Countdown)
	}
}

func (w *Watchdog) stepCountdown() {
	if w.spaceIsOpen() {
		w.clearCountdown()
		w.transition(Open)
		return
	}
	if w.lockIsClosed() {
		w.clearCountdown()
		w.transition(Locked)
		return
	}
	if !w.hasDeadline {
		log.Printf("watchdog: space closed with the door unlocked, locking in %v", gracePeriod)
		w.arm(gracePeriod)
		return
	}
	if w.now().After(w.deadline) {
		log.Printf("watchdog: countdown expired, locking the door")
		w.actions.Lock()
		w.arm(retryPeriod)
	}
}

func (w *Watchdog) stepLocked() {
	if w.spaceIsOpen() {
		w.transition(Open)
		return
	}
	if w.locked != nil && !*w.locked {
		w.transition(Countdown)
	}
}

// arm sets a lock deadline d from now and schedules the beep train
// leading up to it, one beep every beepInterval starting immediately.
func (w *Watchdog) arm(d time.Duration) {
	w.deadline = w.now().Add(d)
	w.hasDeadline = true
	w.cancelBeeps()
	for off := time.Duration(0); off < d; off += beepInterval {
		w.beeps = append(w.beeps, w.queue.Enter(off, w.actions.Beep))
	}
}

func (w *Watchdog) clearCountdown() {
	w.hasDeadline = false
	w.cancelBeeps()
}

func (w *Watchdog) cancelBeeps() {
	for _, h := range w.beeps {
		w.queue.Cancel(h)
	}
	w.beeps = w.beeps[:0]
}
