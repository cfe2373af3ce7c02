// Package ppm provides a continuously-updated clock-drift estimate in
// parts-per-million, refreshed by a background goroutine that queries
// the host's time-synchronization daemon (spec.md §4.8, Component C8).
package ppm

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("ppm")

// pollInterval is how often the background goroutine re-queries the
// time-sync daemon (spec.md §4.8 "updated asynchronously").
const pollInterval = 10 * time.Second

// Querier reports the current clock drift estimate, in parts-per-million,
// or an error if none is available right now. Source accepts any
// Querier so the chronyc-based implementation (Chronyc) can be swapped
// for a test double or an adjtimex-based implementation.
type Querier interface {
	Query() (float64, error)
}

// Source holds the latest PPM estimate, defaulting to 0.0 until a
// Querier succeeds at least once (spec.md §4.8 "If no source is
// available, the value defaults to 0.0").
type Source struct {
	querier Querier
	bits    atomic.Uint64 // float64 bit pattern
	stop    chan struct{}
}

// NewSource starts the background polling goroutine immediately.
func NewSource(q Querier) *Source {
	s := &Source{querier: q, stop: make(chan struct{})}
	s.bits.Store(math.Float64bits(0))
	go s.run()
	return s
}

// Current implements the current_ppm() contract (spec.md §4.8): it is
// sampled by the scheduler exactly once per transmission arming.
func (s *Source) Current() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Close stops the background goroutine; Current continues returning
// the last observed value afterward.
func (s *Source) Close() { close(s.stop) }

func (s *Source) run() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	s.poll()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Source) poll() {
	value, err := s.querier.Query()
	if err != nil {
		// Failures leave the previous value in place and do not raise
		// (spec.md §4.8 "Failures ... do not raise").
		log.Debug("ppm query failed, retaining previous estimate", "error", err)
		return
	}
	s.bits.Store(math.Float64bits(value))
	log.Debug("ppm estimate updated", "ppm", value)
}
