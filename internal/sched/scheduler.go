// Package sched arms a transmission to the next UTC boundary, drives the
// symbol loop, and tears the clock back down, all cooperatively
// cancellable (spec.md §4.9, Component C9).
package sched

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/lbussy/WsprryPi-sub001/internal/dmaring"
	"github.com/lbussy/WsprryPi-sub001/internal/ppm"
	"github.com/lbussy/WsprryPi-sub001/internal/rpi"
	"github.com/lbussy/WsprryPi-sub001/internal/symbol"
	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
	"github.com/lbussy/WsprryPi-sub001/internal/wspr"
)

var log = wlog.With("scheduler")

// WSPR-2 symbol dwell time, 8192/12000 s per spec.md §3 tone-spacing
// derivation (8192 samples per symbol at a 12000 Hz sample rate,
// expressed directly as the canonical WSPR constant).
const symTime = 0.682667

// offsetWSPR2 / offsetWSPR15 bound the per-pass random frequency offset
// (spec.md §4.9 "Arming" step, Δ = 80 Hz / 8 Hz).
const (
	offsetWSPR2  = 80.0
	offsetWSPR15 = 8.0
)

// Pass describes one transmission to arm and run.
type Pass struct {
	CenterFreq float64
	IsWSPR15   bool
	IsTone     bool
	RandomOffset bool

	// PowerLevel is the GPIO pad drive strength, 0..7 (spec.md §6
	// "power_level"), applied to GPIO0-27 during arming.
	PowerLevel uint32

	// WSPR-only fields; ignored when IsTone is set.
	Callsign string
	Locator  string
	PowerDBm int
}

// Scheduler owns the cooperative stop flag shared across all wait loops
// (spec.md §3 "Scheduler state", §4.9 "Cancellation").
type Scheduler struct {
	rpiMap *rpi.Map
	ring   *dmaring.Ring
	ppm    *ppm.Source
	plld   float64
	stop   atomic.Bool
	rng    *rand.Rand
}

// New builds a Scheduler bound to an already-constructed peripheral map,
// ring, and PPM source.
func New(rpiMap *rpi.Map, ring *dmaring.Ring, ppmSource *ppm.Source) *Scheduler {
	return &Scheduler{
		rpiMap: rpiMap,
		ring:   ring,
		ppm:    ppmSource,
		plld:   rpiMap.Plld,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Cancel requests the running transmission stop at the next cancellation
// check point (spec.md §4.9 "Cancellation").
func (s *Scheduler) Cancel() { s.stop.Store(true) }

// resetCancel clears the stop flag before a fresh Run (idempotent
// cancellation per spec.md §3 "Scheduler state").
func (s *Scheduler) resetCancel() { s.stop.Store(false) }

func (s *Scheduler) cancelled() bool { return s.stop.Load() }

// Run arms, executes, and tears down one pass. It returns early with no
// error if cancelled before or during the boundary wait, and runs the
// symbol/tone loop to completion (or cancellation) otherwise.
func (s *Scheduler) Run(p Pass) error {
	s.resetCancel()

	spacing := dmaring.ToneSpacing
	if p.IsWSPR15 {
		spacing = dmaring.WSPR15ToneSpacing
	}

	offset := 0.0
	if p.RandomOffset && !p.IsTone {
		delta := offsetWSPR2
		if p.IsWSPR15 {
			delta = offsetWSPR15
		}
		offset = (s.rng.Float64()*2 - 1) * delta
	}

	if err := s.arm(p.CenterFreq+offset, spacing, p.PowerLevel); err != nil {
		return err
	}
	defer s.teardown()

	if s.waitForBoundary(p.IsWSPR15, p.IsTone) {
		return nil // cancelled during boundary wait
	}

	tx := symbol.NewTransmitter(s.ring, time.Now().UnixNano())

	if p.IsTone {
		s.runTone(tx)
		return nil
	}

	symbols, err := wspr.Encode(p.Callsign, p.Locator, p.PowerDBm)
	if err != nil {
		return err
	}
	dwell := symTime
	if p.IsWSPR15 {
		dwell = 5 * symTime
	}
	s.runWSPR(tx, symbols, dwell)
	return nil
}

// arm implements spec.md §4.9 "Arming" steps 1-4: sample PPM, rebuild the
// tuning table, configure GPIO4 and pad drive strength, then cycle the
// GP0 clock to source from PLLD with the new divider in place.
func (s *Scheduler) arm(centerFreq, spacing float64, powerLevel uint32) error {
	estimate := s.ppm.Current()
	if _, err := s.ring.Tuning.Build(centerFreq, s.plld, estimate, spacing); err != nil {
		return err
	}

	fsel := s.rpiMap.Access(rpi.GPFSEL0)
	s.rpiMap.Write(rpi.GPFSEL0, rpi.GPIO4FselField(fsel, rpi.GPIOFuncAlt0))
	s.rpiMap.Write(rpi.PadsGPIO0_27, rpi.PadDriveField(powerLevel))

	s.disableGP0Clock()

	s.rpiMap.Write(rpi.CMGP0CTL, rpi.ClockManagerPassword|rpi.CMSrcPLLD|rpi.CMMash3)
	s.rpiMap.Write(rpi.CMGP0CTL, rpi.ClockManagerPassword|rpi.CMSrcPLLD|rpi.CMMash3|rpi.CMEnab)

	s.ring.Start()
	return nil
}

// disableGP0Clock clears the enable bit with password 0x5A and spins on
// BUSY, used both at arming (before reprogramming SRC/MASH) and at
// teardown (spec.md §4.9 "Arming" step 3, "Teardown" step 1).
func (s *Scheduler) disableGP0Clock() {
	current := s.rpiMap.Access(rpi.CMGP0CTL)
	s.rpiMap.Write(rpi.CMGP0CTL, rpi.ClockManagerPassword|(current&^uint32(rpi.CMEnab)))
	for s.rpiMap.Access(rpi.CMGP0CTL)&rpi.CMBusy != 0 {
		time.Sleep(10 * time.Microsecond)
	}
}

// waitForBoundary sleeps in <=1s cooperative chunks until the next
// aligned UTC boundary, returning true if cancelled first (spec.md §4.9
// "Arming" steps 5-6).
func (s *Scheduler) waitForBoundary(isWSPR15, isTone bool) bool {
	if isTone {
		return s.cancelled()
	}
	for {
		if s.cancelled() {
			return true
		}
		now := time.Now().UTC()
		if aligned(now, isWSPR15) {
			return false
		}
		sleep := time.Second - time.Duration(now.Nanosecond())
		if sleep <= 0 || sleep > time.Second {
			sleep = time.Second
		}
		time.Sleep(sleep)
	}
}

// aligned reports whether now sits on a valid WSPR transmission boundary
// (spec.md §4.9 "Arming" step 5): even minute, second 1 for WSPR-2;
// minute in {0,15,30,45}, second 1 for WSPR-15.
func aligned(now time.Time, isWSPR15 bool) bool {
	if now.Second() != 1 {
		return false
	}
	minute := now.Minute()
	if isWSPR15 {
		return minute%15 == 0
	}
	return minute%2 == 0
}

// runWSPR executes the 162-symbol loop (spec.md §4.9 "Execution" WSPR).
func (s *Scheduler) runWSPR(tx *symbol.Transmitter, symbols [wspr.NumSymbols]byte, dwell float64) {
	fPWM := s.plld / 2 // PWM clock after the /2 divisor set in Ring.Start
	for _, sym := range symbols {
		if s.cancelled() {
			return
		}
		ratio := s.f0RatioFor(int(sym))
		tx.SendRatio(int(sym), dwell, fPWM, ratio)
	}
}

// runTone executes the indefinite tone loop, exiting on cancellation
// (spec.md §4.9 "Execution" Tone).
func (s *Scheduler) runTone(tx *symbol.Transmitter) {
	const toneChunk = 0.1
	fPWM := s.plld / 2
	ratio := s.f0RatioFor(0)
	for !s.cancelled() {
		tx.SendRatio(0, toneChunk, fPWM, ratio)
	}
}

// f0RatioFor looks up the f0/f1 dither fraction Build computed for tone
// sym, so the ring averages toward the tone's exact target frequency
// instead of sitting on the low dither bracket (spec.md §4.5 step 2).
func (s *Scheduler) f0RatioFor(sym int) float64 { return s.ring.Tuning.F0Ratio(sym) }

// teardown implements spec.md §4.9 "Teardown": disable GP0, reset DMA
// channel 0, restore GPIO4 to input.
func (s *Scheduler) teardown() {
	s.disableGP0Clock()
	s.ring.Stop()
	fsel := s.rpiMap.Access(rpi.GPFSEL0)
	s.rpiMap.Write(rpi.GPFSEL0, rpi.GPIO4FselField(fsel, rpi.GPIOFuncInput))
	log.Debug("transmission torn down")
}
