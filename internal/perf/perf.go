// Package perf adapts the teacher's hardware-profiling device-driver split
// (justanotherdot-biscuit's main.go: a profhw_i interface with
// nilprof_t/intelprof_t implementations selected at boot depending on
// whether the CPU vendor string matches "GenuineIntel") into a Counter
// seam the scheduler's quantum accounting exercises: a no-op counter for
// builds without profiling enabled, and a simulated event counter for
// tests that want to assert on tick/switch counts.
package perf

import "sync"

// Event names one thing worth counting, mirroring the teacher's pmevid_t
// enum (EV_UNHALTED_CORE_CYCLES, EV_INSTR_RETIRED, ...) narrowed to the
// events this module's scheduler can actually produce without real
// hardware performance-monitor registers.
type Event int

const (
	EventTick Event = iota
	EventContextSwitch
	EventForkCompleted
	EventTaskletScheduled
)

var eventNames = map[Event]string{
	EventTick:             "scheduler tick",
	EventContextSwitch:    "context switch",
	EventForkCompleted:    "fork completed",
	EventTaskletScheduled: "tasklet scheduled",
}

func (e Event) String() string { return eventNames[e] }

// Counter is the device-driver seam, shaped after the teacher's profhw_i:
// Start/Stop bracket a counting window, Count reads the accumulated total
// for one event without stopping the window.
type Counter interface {
	Start(ev Event)
	Stop(ev Event)
	Record(ev Event)
	Count(ev Event) uint64
}

// Nil is a Counter that records nothing, mirroring the teacher's
// nilprof_t — the default when no profiling backend is wired in.
type Nil struct{}

func (Nil) Start(Event)        {}
func (Nil) Stop(Event)         {}
func (Nil) Record(Event)       {}
func (Nil) Count(Event) uint64 { return 0 }

// Sim is a Counter backed by plain atomic-free counters guarded by a
// mutex, standing in for the teacher's intelprof_t's real PMC registers —
// Start/Stop here just gate whether increments are recorded, since there
// is no hardware counter to arm/disarm.
type Sim struct {
	mu      sync.Mutex
	active  map[Event]bool
	counts  map[Event]uint64
}

// NewSim returns a Sim with every event initially inactive.
func NewSim() *Sim {
	return &Sim{active: make(map[Event]bool), counts: make(map[Event]uint64)}
}

func (s *Sim) Start(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[ev] = true
}

func (s *Sim) Stop(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[ev] = false
}

// Record records one occurrence of ev if its window is active. Scheduler
// code calls this at the point an event actually happens (a tick firing,
// a context switch, fork returning).
func (s *Sim) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[ev] {
		s.counts[ev]++
	}
}

func (s *Sim) Count(ev Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[ev]
}
