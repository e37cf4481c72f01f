// package bridge connects the door controller to the message bus:
// hardware edges become bus events, bus commands become lock and
// unlock calls.
package bridge

import (
	"log"

	"netz39.org/gatekeeper/door"
)

// Event and command payloads on the door topics.
const (
	EventDoorOpen   = "door open"
	EventDoorClosed = "door closed"
	EventUnlocked   = "door unlocked"
	EventLocked     = "door locked"

	EventButtonGreen = "button green"
	EventButtonRed   = "button red"

	CommandOpen  = "door open"
	CommandClose = "door close"
)

// Sub-topics under the door prefix.
const (
	eventsTopic  = "Events"
	buttonsTopic = "Button/Events"
)

// Publisher is the bus half the bridge needs. bus.Scope implements
// it.
type Publisher interface {
	Publish(sub, payload string) error
}

// Controller is the door driver half.
type Controller interface {
	Lock() bool
	Unlock() bool
}

type Bridge struct {
	pub  Publisher
	ctrl Controller
}

func New(pub Publisher, ctrl Controller) *Bridge {
	return &Bridge{pub: pub, ctrl: ctrl}
}

// DoorState implements door.Listener: every edge becomes at most one
// bus event. Buttons report only their press, the door and lock
// report both directions, the override switches stay on the wire
// until somebody decides what they mean.
func (b *Bridge) DoorState(s door.State, edges []door.Field) {
	for _, f := range edges {
		switch f {
		case door.GreenActive:
			if s.GreenActive {
				log.Printf("bridge: green button active")
				b.publish(buttonsTopic, EventButtonGreen)
			}
		case door.RedActive:
			if s.RedActive {
				log.Printf("bridge: red button active")
				b.publish(buttonsTopic, EventButtonRed)
			}
		case door.DoorClosed:
			if s.DoorClosed {
				log.Printf("bridge: door has been closed")
				b.publish(eventsTopic, EventDoorClosed)
			} else {
				log.Printf("bridge: door has been opened")
				b.publish(eventsTopic, EventDoorOpen)
			}
		case door.LockOpen:
			if s.LockOpen {
				log.Printf("bridge: lock has been unlocked")
				b.publish(eventsTopic, EventUnlocked)
			} else {
				log.Printf("bridge: lock has been locked")
				b.publish(eventsTopic, EventLocked)
			}
		}
	}
}

func (b *Bridge) publish(sub, msg string) {
	if err := b.pub.Publish(sub, msg); err != nil {
		log.Printf("bridge: publish %s: %v", sub, err)
	}
}

// HandleCommand reacts to a payload on the Command topic. Unknown
// payloads are ignored.
func (b *Bridge) HandleCommand(cmd string) {
	switch cmd {
	case CommandOpen:
		log.Printf("bridge: unlocking the door")
		if !b.ctrl.Unlock() {
			log.Printf("bridge: unlock command not acknowledged")
		}
	case CommandClose:
		log.Printf("bridge: locking the door")
		if !b.ctrl.Lock() {
			log.Printf("bridge: lock command not acknowledged")
		}
	}
}
