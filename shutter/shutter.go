// package shutter implements a driver for the shutter-control unit.
// Its beeper doubles as the audible alarm of the door watchdog.
package shutter

import (
	"math/bits"
	"strconv"
)

// Conn is the slice of the microcontroller codec the driver needs.
// *mcu.Conn implements it.
type Conn interface {
	SendCommand(addr uint16, cmd byte) bool
}

// command encodes a beep pattern: 0x10 with the pattern in the low
// nibble, the MSB a parity bit keeping the total popcount odd.
func command(pattern int) byte {
	cmd := 0x10 | byte(pattern&0x0f)
	if bits.OnesCount8(cmd)%2 == 0 {
		cmd |= 0x80
	}
	return cmd
}

// Beeper drives the beeper of the shutter-control unit.
type Beeper struct {
	conn Conn
	addr uint16
}

func NewBeeper(conn Conn, addr uint16) *Beeper {
	return &Beeper{conn: conn, addr: addr}
}

// Beep sounds the given pattern, taken modulo 16. It reports whether
// the unit acknowledged the command.
func (b *Beeper) Beep(pattern int) bool {
	return b.conn.SendCommand(b.addr, command(pattern))
}

// HandleMessage reacts to a payload on the Beep topic: a decimal
// pattern number. Anything unparseable is dropped.
func (b *Beeper) HandleMessage(payload string) {
	pattern, err := strconv.Atoi(payload)
	if err != nil {
		return
	}
	b.Beep(pattern)
}
