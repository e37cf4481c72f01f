package mcu

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// scriptBus replays a fixed sequence of transaction outcomes.
type scriptBus struct {
	script []func(reg byte, r []byte) error
	calls  int
}

var _ i2c.Bus = (*scriptBus)(nil)

func (b *scriptBus) String() string                  { return "script" }
func (b *scriptBus) SetSpeed(physic.Frequency) error { return nil }

func (b *scriptBus) Tx(addr uint16, w, r []byte) error {
	if len(w) != 1 {
		return errors.New("unexpected write length")
	}
	i := b.calls
	if i >= len(b.script) {
		i = len(b.script) - 1
	}
	b.calls++
	return b.script[i](w[0], r)
}

func frame(lo, hi byte) func(byte, []byte) error {
	return func(_ byte, r []byte) error {
		r[0], r[1] = lo, hi
		return nil
	}
}

func busErr() func(byte, []byte) error {
	return func(byte, []byte) error { return errors.New("remote I/O error") }
}

func newTestConn(bus i2c.Bus) (*Conn, *int) {
	c := New(bus)
	pauses := new(int)
	c.pause = func() { *pauses++ }
	return c, pauses
}

func TestFrameValidity(t *testing.T) {
	tests := []struct {
		lo, hi byte
		ok     bool
	}{
		{0x3c, 0xc3, true},
		{0x01, 0xfe, true},
		{0xff, 0x00, true},
		{0x00, 0xff, false}, // zero payload
		{0x3c, 0x3c, false}, // inversion broken
		{0x3c, 0xc2, false},
		{0x00, 0x00, false},
		{0xab, 0x54, true},
	}
	for _, test := range tests {
		c, _ := newTestConn(&scriptBus{script: []func(byte, []byte) error{frame(test.lo, test.hi)}})
		got, ok := c.ReadState(0x23)
		if ok != test.ok {
			t.Errorf("frame (%#02x, %#02x): ok = %v, want %v", test.lo, test.hi, ok, test.ok)
		}
		if ok && got != test.lo {
			t.Errorf("frame (%#02x, %#02x): payload = %#02x, want %#02x", test.lo, test.hi, got, test.lo)
		}
	}
}

func TestFrameFuzz(t *testing.T) {
	// Pump 100 pseudo-random words through the decoder; only frames
	// passing the inversion check may produce a payload.
	seed := uint32(0x6d2b79f5)
	for i := 0; i < 100; i++ {
		seed = seed*1664525 + 1013904223
		lo, hi := byte(seed), byte(seed>>8)
		c, _ := newTestConn(&scriptBus{script: []func(byte, []byte) error{frame(lo, hi)}})
		got, ok := c.ReadState(0x23)
		valid := lo == hi^0xff && lo != 0
		if ok != valid {
			t.Fatalf("frame (%#02x, %#02x): ok = %v, want %v", lo, hi, ok, valid)
		}
		if ok && got != lo {
			t.Fatalf("frame (%#02x, %#02x): payload = %#02x", lo, hi, got)
		}
	}
}

func TestReadRetries(t *testing.T) {
	bus := &scriptBus{script: []func(byte, []byte) error{
		busErr(),
		frame(0x12, 0x12), // corrupt
		busErr(),
		frame(0x2a, 0xd5), // valid
	}}
	c, pauses := newTestConn(bus)
	got, ok := c.ReadState(0x23)
	if !ok || got != 0x2a {
		t.Fatalf("ReadState = (%#02x, %v), want (0x2a, true)", got, ok)
	}
	if *pauses != 3 {
		t.Errorf("paused %d times, want 3", *pauses)
	}
}

func TestReadGivesUp(t *testing.T) {
	bus := &scriptBus{script: []func(byte, []byte) error{busErr()}}
	c, pauses := newTestConn(bus)
	if _, ok := c.ReadState(0x23); ok {
		t.Fatal("ReadState succeeded on a dead bus")
	}
	if bus.calls != attempts {
		t.Errorf("made %d attempts, want %d", bus.calls, attempts)
	}
	if *pauses != attempts-1 {
		t.Errorf("paused %d times, want %d", *pauses, attempts-1)
	}
}

func TestSendCommand(t *testing.T) {
	var reg byte
	bus := &scriptBus{script: []func(byte, []byte) error{
		func(w byte, r []byte) error {
			reg = w
			r[0] = ack
			return nil
		},
	}}
	c, _ := newTestConn(bus)
	if !c.SendCommand(0x23, 0xa0) {
		t.Fatal("acknowledged command reported as failed")
	}
	if reg != 0xa0 {
		t.Errorf("command byte in register slot = %#02x, want 0xa0", reg)
	}
}

func TestSendCommandNak(t *testing.T) {
	bus := &scriptBus{script: []func(byte, []byte) error{
		func(_ byte, r []byte) error {
			r[0] = 0x00
			return nil
		},
	}}
	c, _ := newTestConn(bus)
	if c.SendCommand(0x23, 0x90) {
		t.Fatal("unacknowledged command reported as accepted")
	}
	if bus.calls != attempts {
		t.Errorf("made %d attempts, want %d", bus.calls, attempts)
	}
}

func TestSendCommandRetry(t *testing.T) {
	bus := &scriptBus{script: []func(byte, []byte) error{
		busErr(),
		func(_ byte, r []byte) error {
			r[0] = ack
			return nil
		},
	}}
	c, _ := newTestConn(bus)
	if !c.SendCommand(0x23, 0x90) {
		t.Fatal("command not accepted after transient error")
	}
}
