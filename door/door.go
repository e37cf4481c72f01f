// package door implements a driver for the door controller: a small
// microcontroller watching the entry buttons, the door leaf contact
// and the lock bolt, and driving the electric lock.
package door

import (
	"log"
	"time"
)

// State is one decoded sample of the controller's state word.
type State struct {
	GreenActive bool // green button pressed
	RedActive   bool // red button pressed
	DoorClosed  bool // door leaf magnetic contact
	LockOpen    bool // lock bolt retracted
	ForceClose  bool // physical override switch
	ForceOpen   bool // physical override switch
}

// Field names one boolean of the state word. The order of the
// constants is the delivery order for edges.
type Field int

const (
	DoorClosed Field = iota
	ForceClose
	ForceOpen
	GreenActive
	LockOpen
	RedActive
)

var fieldNames = [...]string{
	DoorClosed:  "door_closed",
	ForceClose:  "force_close",
	ForceOpen:   "force_open",
	GreenActive: "green_active",
	LockOpen:    "lock_open",
	RedActive:   "red_active",
}

func (f Field) String() string {
	return fieldNames[f]
}

func decode(w byte) State {
	return State{
		GreenActive: w&0x20 != 0,
		RedActive:   w&0x10 != 0,
		DoorClosed:  w&0x08 != 0,
		LockOpen:    w&0x04 != 0,
		ForceClose:  w&0x02 != 0,
		ForceOpen:   w&0x01 != 0,
	}
}

func (s State) field(f Field) bool {
	switch f {
	case DoorClosed:
		return s.DoorClosed
	case ForceClose:
		return s.ForceClose
	case ForceOpen:
		return s.ForceOpen
	case GreenActive:
		return s.GreenActive
	case LockOpen:
		return s.LockOpen
	case RedActive:
		return s.RedActive
	}
	panic("unknown field")
}

// diff returns the fields whose value differs between old and s, in
// field order.
func (s State) diff(old State) []Field {
	var edges []Field
	for i := range fieldNames {
		if f := Field(i); s.field(f) != old.field(f) {
			edges = append(edges, f)
		}
	}
	return edges
}

// allFields is the edge set of the very first sample, when every
// value is news.
func allFields() []Field {
	edges := make([]Field, len(fieldNames))
	for i := range edges {
		edges[i] = Field(i)
	}
	return edges
}

// A Listener receives state samples from the controller. Edges lists
// the fields that changed since the previous accepted sample, in
// field order; the listener is only invoked when it is non-empty.
type Listener interface {
	DoorState(s State, edges []Field)
}

const (
	cmdUnlock = 0x90
	cmdLock   = 0xa0
)

const (
	samplePause = 1 * time.Second
	failPause   = 500 * time.Millisecond
)

// Conn is the slice of the microcontroller codec the driver needs.
// *mcu.Conn implements it.
type Conn interface {
	ReadState(addr uint16) (byte, bool)
	SendCommand(addr uint16, cmd byte) bool
}

// Controller polls the door controller at addr and forwards edges to
// a Listener.
type Controller struct {
	conn Conn
	addr uint16

	last State
	have bool

	stop  chan struct{}
	sleep func(time.Duration)
}

func NewController(conn Conn, addr uint16) *Controller {
	return &Controller{
		conn:  conn,
		addr:  addr,
		stop:  make(chan struct{}),
		sleep: time.Sleep,
	}
}

// Unlock retracts the lock bolt. It reports whether the controller
// acknowledged the command; a failed command is not retried here, the
// caller re-issues on its own schedule.
func (c *Controller) Unlock() bool {
	return c.conn.SendCommand(c.addr, cmdUnlock)
}

// Lock drives the lock bolt out.
func (c *Controller) Lock() bool {
	return c.conn.SendCommand(c.addr, cmdLock)
}

// Run polls the controller at 1 Hz until Stop is called, delivering
// edge events to l. Failed reads pause the loop briefly and are
// otherwise ignored; the codec has already retried them.
func (c *Controller) Run(l Listener) {
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		if !c.sample(l) {
			c.sleep(failPause)
			continue
		}
		c.sleep(samplePause)
	}
}

// Stop ends the polling loop. It is safe to call from another
// goroutine.
func (c *Controller) Stop() {
	close(c.stop)
}

// sample reads one frame and delivers its edges, if any. It reports
// whether a valid frame was read.
func (c *Controller) sample(l Listener) bool {
	w, ok := c.conn.ReadState(c.addr)
	if !ok {
		return false
	}
	s := decode(w)
	if s.ForceClose && s.ForceOpen {
		// The override switches are mechanically exclusive; both set
		// means the frame is lying about at least one of them.
		log.Printf("door: force_close and force_open both set")
	}
	var edges []Field
	if c.have {
		edges = s.diff(c.last)
	} else {
		edges = allFields()
	}
	c.last, c.have = s, true
	if len(edges) > 0 {
		l.DoorState(s, edges)
	}
	return true
}
