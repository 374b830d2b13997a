// Package occupancy simulates a home's presence patterns: a sleep window,
// a weekday commute (skipped on work-from-home days), and a time-banded
// active-area table, propagated onto that home's motion sensors and
// person entities. Grounded on the original implementation's
// OccupancySimulator.
package occupancy

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/myorg/homeiqsim/internal/behavior"
	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
)

const updateInterval = 15 * time.Minute

// time-of-day boundaries expressed as minutes since midnight.
const (
	wakeMinute       = 6*60 + 30
	sleepMinute      = 22*60 + 30
	leaveHomeMinute  = 8 * 60
	returnHomeMinute = 17*60 + 30
)

// Config describes one home's occupancy profile.
type Config struct {
	HasKids     bool
	WFHRatio    float64 // fraction of weekdays spent working from home
	ShiftWorker bool
}

// Simulator drives occupancy for a single home.
type Simulator struct {
	homeID string
	store  *state.Store
	clk    *clock.Clock
	sched  *scheduler.Scheduler
	cfg    Config

	mu          sync.Mutex
	isHome      bool
	isSleeping  bool
	activeAreas []string
	vacation    bool

	taskID string
}

// New constructs an occupancy Simulator for homeID.
func New(homeID string, store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler, cfg Config) *Simulator {
	return &Simulator{
		homeID: homeID,
		store:  store,
		clk:    clk,
		sched:  sched,
		cfg:    cfg,
		isHome: true,
	}
}

// Start schedules the occupancy update loop.
func (s *Simulator) Start() {
	s.taskID, _ = s.sched.ScheduleInterval("occupancy.update", updateInterval, func(now time.Time) { s.update(now) })
}

// Stop cancels the occupancy update loop.
func (s *Simulator) Stop() {
	if s.taskID != "" {
		s.sched.Cancel(s.taskID)
	}
}

// SetVacationMode forces the home away, not sleeping and with no active
// areas, while enabled,
// overriding the normal weekday/WFH schedule until disabled.
func (s *Simulator) SetVacationMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vacation = enabled
	if enabled {
		s.isHome = false
		s.isSleeping = false
		s.activeAreas = nil
	} else {
		s.isHome = true
	}
}

func (s *Simulator) update(now time.Time) {
	s.mu.Lock()

	if s.vacation {
		s.mu.Unlock()
		s.propagate(now)
		return
	}

	minuteOfDay := now.Hour()*60 + now.Minute()
	isWeekday := now.Weekday() >= time.Monday && now.Weekday() <= time.Friday
	isWFHDay := rand.Float64() < s.cfg.WFHRatio

	if minuteOfDay >= sleepMinute || minuteOfDay < wakeMinute {
		s.isSleeping = true
		s.activeAreas = []string{"bedroom"}
	} else {
		s.isSleeping = false
	}

	if isWeekday && !isWFHDay {
		if minuteOfDay >= leaveHomeMinute && minuteOfDay < returnHomeMinute {
			s.isHome = false
			s.activeAreas = nil
		} else {
			s.isHome = true
		}
	} else {
		s.isHome = true
	}

	if s.isHome && !s.isSleeping {
		s.updateActiveAreasLocked(minuteOfDay)
	}

	s.mu.Unlock()
	s.propagate(now)
}

func (s *Simulator) updateActiveAreasLocked(minuteOfDay int) {
	switch {
	case minuteOfDay >= 6*60 && minuteOfDay < 9*60:
		areas := []string{"kitchen", "bathroom"}
		if rand.Float64() < 0.3 {
			areas = append(areas, "bedroom")
		}
		s.activeAreas = areas
	case minuteOfDay >= 9*60 && minuteOfDay < 12*60:
		candidates := []string{"living_room", "kitchen", "office"}
		s.activeAreas = []string{candidates[rand.Intn(len(candidates))]}
	case minuteOfDay >= 12*60 && minuteOfDay < 13*60:
		s.activeAreas = []string{"kitchen", "dining_room"}
	case minuteOfDay >= 13*60 && minuteOfDay < 17*60:
		if s.cfg.WFHRatio > 0.5 {
			s.activeAreas = []string{"office"}
		} else {
			s.activeAreas = []string{"living_room"}
		}
	case minuteOfDay >= 17*60 && minuteOfDay < 20*60:
		areas := []string{"kitchen", "living_room"}
		if s.cfg.HasKids {
			areas = append(areas, "playroom")
		}
		s.activeAreas = areas
	case minuteOfDay >= 20*60 && minuteOfDay < sleepMinute:
		s.activeAreas = []string{"living_room", "bedroom", "bathroom"}
	default:
		s.activeAreas = nil
	}

	if rand.Float64() < 0.2 {
		candidates := []string{"living_room", "kitchen", "bedroom", "bathroom", "hallway"}
		if rand.Float64() < 0.5 {
			s.activeAreas = append(s.activeAreas, candidates[rand.Intn(len(candidates))])
		}
	}
}

func (s *Simulator) propagate(now time.Time) {
	s.mu.Lock()
	isHome := s.isHome
	isSleeping := s.isSleeping
	active := append([]string(nil), s.activeAreas...)
	s.mu.Unlock()

	motionPrefix := "binary_sensor." + s.homeID + "_motion"
	personPrefix := "person." + s.homeID

	for _, rec := range s.store.GetStatesByDomain("binary_sensor") {
		if !strings.HasPrefix(rec.EntityID, motionPrefix) {
			continue
		}
		area, _ := rec.Attributes["area"].(string)
		if area == "" {
			area = "unknown"
		}
		shouldBeOn := isHome && !isSleeping && (containsArea(active, area) || rand.Float64() < 0.1)
		newState := "off"
		if shouldBeOn {
			newState = "on"
		}
		if rec.State != newState {
			s.store.SetState(rec.EntityID, newState, rec.Attributes, nil, false, now)
		}
	}

	for _, rec := range s.store.GetStatesByDomain("person") {
		if !strings.HasPrefix(rec.EntityID, personPrefix) {
			continue
		}
		newState := "away"
		if isHome {
			newState = "home"
		}
		if rec.State == newState {
			continue
		}
		attrs := behavior.MergeAttributes(rec.Attributes, map[string]any{"source": "device_tracker"})
		s.store.SetState(rec.EntityID, newState, attrs, nil, false, now)
	}
}

func containsArea(areas []string, area string) bool {
	for _, a := range areas {
		if a == area {
			return true
		}
	}
	return false
}
