// Package timer implements the three per-entity RLC-AM timers
// (t-PollRetransmit, t-StatusProhibit, t-Reordering) as TTI-driven
// counters rather than wall-clock timers.
//
// The MAC thread is the only clock source: it calls Service.Tick once per
// TTI (1 ms), and each running timer's remaining count is decremented
// inline. There is no separate timer goroutine — per §9's design note,
// the callback-driven timer model collapses into a cooperative,
// single-thread check inside the caller of Tick.
package timer

// Timer is a single countdown armed in TTI units.
type Timer struct {
	running   bool
	remaining uint32
	onExpiry  func()
}

// New creates a Timer that invokes onExpiry (may be nil) when it reaches
// zero during a Tick.
func New(onExpiry func()) *Timer {
	return &Timer{onExpiry: onExpiry}
}

// Start arms the timer for durationMs TTIs (1 TTI == 1 ms). A duration of
// 0 or less stops the timer instead (matches "infinity"/disabled timers
// in configuration, e.g. t_reordering can be configured to effectively
// never fire by never starting it).
func (t *Timer) Start(durationMs uint32) {
	if durationMs == 0 {
		t.Stop()
		return
	}
	t.running = true
	t.remaining = durationMs
}

// Stop disarms the timer without firing its callback.
func (t *Timer) Stop() {
	t.running = false
	t.remaining = 0
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool { return t.running }

// tick decrements the timer by one TTI and reports whether it just
// expired on this call (fires at the TTI the remaining count reaches
// zero; it is stopped immediately so re-ticking does not re-fire it).
func (t *Timer) tick() bool {
	if !t.running {
		return false
	}
	t.remaining--
	if t.remaining == 0 {
		t.running = false
		return true
	}
	return false
}

// Service bundles the three per-entity timers and drives them from a
// single Tick call from the MAC thread.
type Service struct {
	PollRetransmit *Timer
	StatusProhibit *Timer
	Reordering     *Timer
}

// NewService wires callbacks for each timer's expiry into the owning
// entity. Any callback may be nil.
func NewService(onPollRetransmit, onStatusProhibit, onReordering func()) *Service {
	return &Service{
		PollRetransmit: New(onPollRetransmit),
		StatusProhibit: New(onStatusProhibit),
		Reordering:     New(onReordering),
	}
}

// Tick advances all three timers by one TTI, invoking any callback whose
// timer expires on this call. Callbacks run synchronously on the calling
// (MAC) goroutine, after the timer's own state has already been updated,
// so a callback that re-arms its own timer behaves correctly.
func (s *Service) Tick() {
	fire := func(t *Timer) {
		if t.tick() && t.onExpiry != nil {
			t.onExpiry()
		}
	}
	fire(s.PollRetransmit)
	fire(s.StatusProhibit)
	fire(s.Reordering)
}

// StopAll disarms every timer, used by reestablish()/stop().
func (s *Service) StopAll() {
	s.PollRetransmit.Stop()
	s.StatusProhibit.Stop()
	s.Reordering.Stop()
}
