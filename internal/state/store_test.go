package state

import (
	"sync"
	"testing"
	"time"
)

func TestStore_SetStateRejectsMalformedEntityID(t *testing.T) {
	s := New(10, nil)
	if _, err := s.SetState("not-an-entity-id", "on", nil, nil, false, time.Now()); err == nil {
		t.Fatal("expected an error for a malformed entity id")
	}
}

func TestStore_GetStateNotFound(t *testing.T) {
	s := New(10, nil)
	if _, err := s.GetState("light.missing"); err == nil {
		t.Fatal("expected NotFound for an entity that was never written")
	}
}

func TestStore_FirstWriteSetsBothTimestampsEqual(t *testing.T) {
	s := New(10, nil)
	now := time.Now()
	rec, err := s.SetState("light.kitchen", "on", map[string]any{"brightness": 200}, nil, false, now)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.LastChanged.Equal(now) || !rec.LastUpdated.Equal(now) {
		t.Errorf("expected both timestamps = %v, got changed=%v updated=%v", now, rec.LastChanged, rec.LastUpdated)
	}
}

func TestStore_UnchangedWriteAdvancesOnlyLastUpdated(t *testing.T) {
	s := New(10, nil)
	t0 := time.Now()
	attrs := map[string]any{"brightness": 200}
	first, _ := s.SetState("light.kitchen", "on", attrs, nil, false, t0)

	t1 := t0.Add(time.Minute)
	second, err := s.SetState("light.kitchen", "on", attrs, nil, false, t1)
	if err != nil {
		t.Fatal(err)
	}
	if !second.LastChanged.Equal(first.LastChanged) {
		t.Errorf("LastChanged should not move on an unchanged write: %v vs %v", second.LastChanged, first.LastChanged)
	}
	if !second.LastUpdated.Equal(t1) {
		t.Errorf("LastUpdated = %v, expected %v", second.LastUpdated, t1)
	}
}

func TestStore_ChangedWriteAdvancesBothTimestamps(t *testing.T) {
	s := New(10, nil)
	t0 := time.Now()
	s.SetState("light.kitchen", "on", map[string]any{"brightness": 200}, nil, false, t0)

	t1 := t0.Add(time.Minute)
	rec, _ := s.SetState("light.kitchen", "on", map[string]any{"brightness": 150}, nil, false, t1)
	if !rec.LastChanged.Equal(t1) {
		t.Errorf("LastChanged = %v, expected %v after an attribute change", rec.LastChanged, t1)
	}
}

func TestStore_ForceUpdateDoesNotAdvanceLastChangedOrHistoryWithoutADiff(t *testing.T) {
	s := New(10, nil)
	t0 := time.Now()
	attrs := map[string]any{"brightness": 200}
	s.SetState("light.kitchen", "on", attrs, nil, false, t0)

	t1 := t0.Add(time.Minute)
	rec, _ := s.SetState("light.kitchen", "on", attrs, nil, true, t1)
	if !rec.LastChanged.Equal(t0) {
		t.Errorf("forceUpdate without a diff should leave LastChanged at %v, got %v", t0, rec.LastChanged)
	}
	if !rec.LastUpdated.Equal(t1) {
		t.Errorf("LastUpdated should still advance to %v, got %v", t1, rec.LastUpdated)
	}
	hist, _ := s.GetHistory("light.kitchen", time.Time{}, time.Time{})
	if len(hist) != 0 {
		t.Errorf("forceUpdate without a diff should not touch history, got %d entries", len(hist))
	}
}

func TestStore_UnchangedWriteWithoutForceDoesNotNotify(t *testing.T) {
	s := New(10, nil)
	attrs := map[string]any{"brightness": 200}
	t0 := time.Now()
	s.SetState("light.kitchen", "on", attrs, nil, false, t0)

	notified := false
	s.AddListener(func(c Change) { notified = true })
	s.SetState("light.kitchen", "on", attrs, nil, false, t0.Add(time.Minute))
	if notified {
		t.Error("unchanged write without forceUpdate should not notify any listener")
	}
}

func TestStore_ForceUpdateWithoutADiffStillNotifies(t *testing.T) {
	s := New(10, nil)
	attrs := map[string]any{"brightness": 200}
	t0 := time.Now()
	s.SetState("light.kitchen", "on", attrs, nil, false, t0)

	notified := false
	s.AddListener(func(c Change) { notified = true })
	s.SetState("light.kitchen", "on", attrs, nil, true, t0.Add(time.Minute))
	if !notified {
		t.Error("forceUpdate without a diff should still notify listeners")
	}
}

func TestStore_GetHistoryFiltersByTimeRange(t *testing.T) {
	s := New(10, nil)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.SetState("sensor.temp", intToState(i), nil, nil, false, base.Add(time.Duration(i)*time.Minute))
	}
	// history holds "0".."3" (current value "4" is excluded); filter to
	// [base+1m, base+2m] which should keep only "1" and "2".
	hist, err := s.GetHistory("sensor.temp", base.Add(time.Minute), base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1", "2"}
	if len(hist) != len(want) {
		t.Fatalf("len(history) = %d, want %d: %v", len(hist), len(want), hist)
	}
	for i, h := range hist {
		if h.State != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, h.State, want[i])
		}
	}
}

func TestStore_HistoryBoundedAndOldestDroppedFirst(t *testing.T) {
	s := New(3, nil)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.SetState("sensor.temp", intToState(i), nil, nil, false, base.Add(time.Duration(i)*time.Second))
	}
	hist, err := s.GetHistory("sensor.temp", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(history) = %d, expected bound of 3", len(hist))
	}
	// State "0" was evicted; history holds oldest-first "1","2","3" (the
	// current value "4" is not part of history).
	want := []string{"1", "2", "3"}
	for i, h := range hist {
		if h.State != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, h.State, want[i])
		}
	}
}

func TestStore_UnchangedWriteDoesNotAddHistory(t *testing.T) {
	s := New(10, nil)
	attrs := map[string]any{"x": 1}
	t0 := time.Now()
	s.SetState("sensor.x", "idle", attrs, nil, false, t0)
	s.SetState("sensor.x", "idle", attrs, nil, false, t0.Add(time.Second))
	hist, _ := s.GetHistory("sensor.x", time.Time{}, time.Time{})
	if len(hist) != 0 {
		t.Errorf("len(history) = %d, expected 0 for two identical writes", len(hist))
	}
}

func TestStore_GetAllStatesSortedByEntityID(t *testing.T) {
	s := New(10, nil)
	now := time.Now()
	s.SetState("light.b", "on", nil, nil, false, now)
	s.SetState("light.a", "on", nil, nil, false, now)
	all := s.GetAllStates()
	if len(all) != 2 || all[0].EntityID != "light.a" || all[1].EntityID != "light.b" {
		t.Fatalf("GetAllStates not sorted: %v", all)
	}
}

func TestStore_GetStatesByDomainFilters(t *testing.T) {
	s := New(10, nil)
	now := time.Now()
	s.SetState("light.a", "on", nil, nil, false, now)
	s.SetState("switch.a", "on", nil, nil, false, now)
	lights := s.GetStatesByDomain("light")
	if len(lights) != 1 || lights[0].EntityID != "light.a" {
		t.Fatalf("GetStatesByDomain(light) = %v", lights)
	}
}

func TestStore_RemoveStateClearsCurrentAndHistory(t *testing.T) {
	s := New(10, nil)
	now := time.Now()
	s.SetState("light.a", "on", nil, nil, false, now)
	s.SetState("light.a", "off", nil, nil, false, now.Add(time.Second))
	if err := s.RemoveState("light.a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetState("light.a"); err == nil {
		t.Error("expected NotFound after RemoveState")
	}
	if err := s.RemoveState("light.a"); err == nil {
		t.Error("expected NotFound removing an already-removed entity")
	}
}

func TestStore_ReturnedStateIsIsolatedFromInternalMutation(t *testing.T) {
	s := New(10, nil)
	attrs := map[string]any{"brightness": 200}
	rec, _ := s.SetState("light.a", "on", attrs, nil, false, time.Now())

	rec.Attributes["brightness"] = 0
	again, _ := s.GetState("light.a")
	if again.Attributes["brightness"] != 200 {
		t.Errorf("mutating a returned EntityState leaked into the store: got %v", again.Attributes["brightness"])
	}

	attrs["brightness"] = 999
	again2, _ := s.GetState("light.a")
	if again2.Attributes["brightness"] != 200 {
		t.Errorf("mutating the caller's input map after the call leaked into the store: got %v", again2.Attributes["brightness"])
	}
}

func TestStore_ListenersNotifiedInRegistrationOrderWithIncreasingSeq(t *testing.T) {
	s := New(10, nil)
	var mu sync.Mutex
	var order []string
	var lastSeq uint64

	s.AddListener(func(c Change) {
		mu.Lock()
		order = append(order, "first")
		if c.Seq <= lastSeq {
			t.Errorf("seq did not increase: %d after %d", c.Seq, lastSeq)
		}
		lastSeq = c.Seq
		mu.Unlock()
	})
	s.AddListener(func(c Change) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	s.SetState("light.a", "on", nil, nil, false, time.Now())
	s.SetState("light.a", "off", nil, nil, false, time.Now())

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "first", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestStore_ListenerPanicDoesNotBlockOthersOrCorruptWrite(t *testing.T) {
	s := New(10, nil)
	called := false
	s.AddListener(func(c Change) { panic("boom") })
	s.AddListener(func(c Change) { called = true })

	rec, err := s.SetState("light.a", "on", nil, nil, false, time.Now())
	if err != nil {
		t.Fatalf("SetState should succeed despite a panicking listener: %v", err)
	}
	if rec.State != "on" {
		t.Errorf("write corrupted by listener panic: %v", rec)
	}
	if !called {
		t.Error("second listener was not invoked after the first panicked")
	}
}

func TestStore_RemoveListenerStopsFutureNotifications(t *testing.T) {
	s := New(10, nil)
	count := 0
	id := s.AddListener(func(c Change) { count++ })
	s.SetState("light.a", "on", nil, nil, false, time.Now())
	s.RemoveListener(id)
	s.SetState("light.a", "off", nil, nil, false, time.Now())
	if count != 1 {
		t.Errorf("count = %d, expected 1 notification before removal", count)
	}
}

func TestStore_ReentrantSetStateFromListenerIsOrderedNotNested(t *testing.T) {
	s := New(10, nil)
	var seqs []uint64
	var mu sync.Mutex
	triggered := false

	s.AddListener(func(c Change) {
		mu.Lock()
		seqs = append(seqs, c.Seq)
		mu.Unlock()
		if c.New.EntityID == "light.a" && !triggered {
			triggered = true
			s.SetState("light.b", "on", nil, nil, false, time.Now())
		}
	})

	s.SetState("light.a", "on", nil, nil, false, time.Now())

	mu.Lock()
	defer mu.Unlock()
	if len(seqs) != 2 {
		t.Fatalf("expected 2 notifications (light.a then light.b), got %d", len(seqs))
	}
	if seqs[0] >= seqs[1] {
		t.Errorf("re-entrant write's seq %d should be greater than the triggering write's seq %d", seqs[1], seqs[0])
	}
}

func intToState(i int) string {
	return string(rune('0' + i))
}
