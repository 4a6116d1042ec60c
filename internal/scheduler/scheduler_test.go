package scheduler

import (
	"container/heap"
	"testing"
	"time"
)

func TestAlarmHeap_PopsEarliestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &alarmHeap{}
	heap.Init(h)
	heap.Push(h, alarm{roundID: "c", at: base.Add(3 * time.Minute)})
	heap.Push(h, alarm{roundID: "a", at: base})
	heap.Push(h, alarm{roundID: "b", at: base.Add(time.Minute)})

	var got []string
	for h.Len() > 0 {
		got = append(got, heap.Pop(h).(alarm).roundID)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
}

func TestPeekAlarm_EmptyHeap(t *testing.T) {
	s := &Scheduler{wake: make(chan struct{}, 1)}
	if _, ok := s.peekAlarm(); ok {
		t.Error("peekAlarm on empty heap reported an alarm")
	}
	if _, ok := s.popDueAlarm(time.Now()); ok {
		t.Error("popDueAlarm on empty heap reported an alarm")
	}
}

func TestPopDueAlarm_OnlyFiresPastAlarms(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Scheduler{wake: make(chan struct{}, 1)}
	s.armAlarm("future", now.Add(time.Minute))
	s.armAlarm("due", now.Add(-time.Second))

	a, ok := s.popDueAlarm(now)
	if !ok || a.roundID != "due" {
		t.Fatalf("popDueAlarm = (%v, %v), want the due alarm", a, ok)
	}
	if _, ok := s.popDueAlarm(now); ok {
		t.Error("popDueAlarm fired an alarm that is still in the future")
	}
	// The future alarm stays armed.
	next, ok := s.peekAlarm()
	if !ok || next.roundID != "future" {
		t.Errorf("peekAlarm = (%v, %v), want the future alarm", next, ok)
	}
}

func TestArmAlarm_WakesLoop(t *testing.T) {
	s := &Scheduler{wake: make(chan struct{}, 1)}
	s.armAlarm("r1", time.Now())

	select {
	case <-s.wake:
	default:
		t.Error("armAlarm did not signal the wake channel")
	}

	// A full wake channel must not block the caller.
	s.armAlarm("r2", time.Now())
	s.armAlarm("r3", time.Now())
	if s.alarms.Len() != 3 {
		t.Errorf("alarms = %d, want 3", s.alarms.Len())
	}
}
