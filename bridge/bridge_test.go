package bridge

import (
	"testing"

	"netz39.org/gatekeeper/door"
)

type published struct {
	sub, payload string
}

type fakePub struct {
	msgs []published
}

func (f *fakePub) Publish(sub, payload string) error {
	f.msgs = append(f.msgs, published{sub, payload})
	return nil
}

type fakeCtrl struct {
	locks, unlocks int
}

func (f *fakeCtrl) Lock() bool   { f.locks++; return true }
func (f *fakeCtrl) Unlock() bool { f.unlocks++; return true }

func TestEdgesBecomeEvents(t *testing.T) {
	tests := []struct {
		name  string
		state door.State
		edges []door.Field
		want  []published
	}{
		{
			"door opened",
			door.State{LockOpen: true},
			[]door.Field{door.DoorClosed},
			[]published{{"Events", EventDoorOpen}},
		},
		{
			"door closed",
			door.State{DoorClosed: true},
			[]door.Field{door.DoorClosed},
			[]published{{"Events", EventDoorClosed}},
		},
		{
			"unlocked",
			door.State{LockOpen: true},
			[]door.Field{door.LockOpen},
			[]published{{"Events", EventUnlocked}},
		},
		{
			"locked",
			door.State{DoorClosed: true},
			[]door.Field{door.LockOpen},
			[]published{{"Events", EventLocked}},
		},
		{
			"green press",
			door.State{GreenActive: true},
			[]door.Field{door.GreenActive},
			[]published{{"Button/Events", EventButtonGreen}},
		},
		{
			"green release",
			door.State{},
			[]door.Field{door.GreenActive},
			nil,
		},
		{
			"red press",
			door.State{RedActive: true},
			[]door.Field{door.RedActive},
			[]published{{"Button/Events", EventButtonRed}},
		},
		{
			"red release",
			door.State{},
			[]door.Field{door.RedActive},
			nil,
		},
		{
			"override switches have no events",
			door.State{ForceOpen: true, ForceClose: true},
			[]door.Field{door.ForceClose, door.ForceOpen},
			nil,
		},
		{
			"closed and locked in one sample",
			door.State{DoorClosed: true},
			[]door.Field{door.DoorClosed, door.LockOpen},
			[]published{{"Events", EventDoorClosed}, {"Events", EventLocked}},
		},
	}
	for _, test := range tests {
		pub := new(fakePub)
		b := New(pub, new(fakeCtrl))
		b.DoorState(test.state, test.edges)
		if len(pub.msgs) != len(test.want) {
			t.Errorf("%s: published %v, want %v", test.name, pub.msgs, test.want)
			continue
		}
		for i := range test.want {
			if pub.msgs[i] != test.want[i] {
				t.Errorf("%s: published %v, want %v", test.name, pub.msgs, test.want)
			}
		}
	}
}

func TestCommands(t *testing.T) {
	ctrl := new(fakeCtrl)
	b := New(new(fakePub), ctrl)
	b.HandleCommand(CommandOpen)
	if ctrl.unlocks != 1 || ctrl.locks != 0 {
		t.Errorf("after open: unlocks = %d, locks = %d", ctrl.unlocks, ctrl.locks)
	}
	b.HandleCommand(CommandClose)
	if ctrl.locks != 1 {
		t.Errorf("after close: locks = %d", ctrl.locks)
	}
	b.HandleCommand("door halfway")
	b.HandleCommand("")
	if ctrl.unlocks != 1 || ctrl.locks != 1 {
		t.Errorf("unknown commands reached the controller: unlocks = %d, locks = %d", ctrl.unlocks, ctrl.locks)
	}
}
