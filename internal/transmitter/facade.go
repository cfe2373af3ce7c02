// Package transmitter is the single public entry point for configuring,
// starting, and tearing down a transmission: it owns the peripheral map,
// page pool, ring, and worker thread for the life of the process
// (spec.md §4.10, Component C10).
package transmitter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lbussy/WsprryPi-sub001/internal/dmaring"
	"github.com/lbussy/WsprryPi-sub001/internal/mailbox"
	"github.com/lbussy/WsprryPi-sub001/internal/ppm"
	"github.com/lbussy/WsprryPi-sub001/internal/rpi"
	"github.com/lbussy/WsprryPi-sub001/internal/sched"
	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("transmitter")

// poolCapacity is the ring (1024) plus the tuning-table page (spec.md
// §4.2 "N = 1025").
const poolCapacity = dmaring.RingSize + 1

// Params holds the configured transmission (spec.md §3 "Transmission
// parameters"). It is created by Setup and mutated only by this façade.
type Params struct {
	TargetFreqHz float64
	OffsetHz     float64
	PPMInit      float64
	Callsign     string
	Locator      string
	PowerDBm     int
	IsTone       bool
	IsWSPR15     bool

	// PowerLevel is the GPIO pad drive strength, 0..7 (spec.md §6
	// "power_level"), passed through to sched.Pass at arming.
	PowerLevel int

	// UseNTP selects the PPM source on first Setup call: true polls
	// chronyc, false holds PPMInit fixed for the life of the façade
	// (spec.md §6 "use_ntp").
	UseNTP bool

	dmaInitialized bool
}

// Facade is the process-wide transmitter: exactly one exists per process
// (spec.md §4.9 "Scheduling model" — "exactly one transmitter façade per
// process").
type Facade struct {
	mu sync.Mutex

	rpiMap *rpi.Map
	mb     *mailbox.Mailbox
	pool   *mailbox.Pool
	ring   *dmaring.Ring
	ppm    *ppm.Source
	sched  *sched.Scheduler

	params Params
	wg     sync.WaitGroup
	running bool
}

// New constructs an unconfigured façade; hardware resources are claimed
// lazily on the first call to Setup.
func New() *Facade {
	return &Facade{}
}

// Setup implements setup_transmission (spec.md §4.10): allocates the ring
// and tuning table on first call, computes nothing itself (the codec
// runs per-pass in the scheduler), and stores parameters.
func (f *Facade) Setup(p Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !p.IsTone {
		if p.Callsign == "" || p.Locator == "" {
			return errors.New("transmitter: callsign and locator are required for a WSPR pass")
		}
	}

	if f.ring == nil {
		if err := f.initHardware(p.UseNTP, p.PPMInit); err != nil {
			return err
		}
	}
	p.dmaInitialized = true
	f.params = p
	return nil
}

func (f *Facade) initHardware(useNTP bool, fixedPPM float64) error {
	rpiMap, err := rpi.Open()
	if err != nil {
		return fmt.Errorf("transmitter: open peripheral map: %w", err)
	}
	mb, err := mailbox.Open()
	if err != nil {
		rpiMap.Close()
		return fmt.Errorf("transmitter: open mailbox: %w", err)
	}
	pool, err := mailbox.NewPool(mb, poolCapacity, rpiMap.Family)
	if err != nil {
		mb.Close()
		rpiMap.Close()
		return fmt.Errorf("transmitter: build page pool: %w", err)
	}
	ring, err := dmaring.Build(rpiMap, pool)
	if err != nil {
		pool.Close()
		mb.Close()
		rpiMap.Close()
		return fmt.Errorf("transmitter: build ring: %w", err)
	}

	f.rpiMap = rpiMap
	f.mb = mb
	f.pool = pool
	f.ring = ring
	if useNTP {
		f.ppm = ppm.NewSource(ppm.Chronyc{})
	} else {
		f.ppm = ppm.NewSource(ppm.Fixed(fixedPPM))
	}
	f.sched = sched.New(rpiMap, ring, f.ppm)
	return nil
}

// UpdateDMAForPPM implements update_dma_for_ppm (spec.md §4.10): safe to
// call only between passes, never while the worker is running.
func (f *Facade) UpdateDMAForPPM(ppmValue float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return errors.New("transmitter: cannot rebuild tuning table while a transmission is running")
	}
	spacing := dmaring.ToneSpacing
	if f.params.IsWSPR15 {
		spacing = dmaring.WSPR15ToneSpacing
	}
	_, err := f.ring.Tuning.Build(f.params.TargetFreqHz+f.params.OffsetHz, f.rpiMap.Plld, ppmValue, spacing)
	return err
}

// StartThreadedTransmission implements start_threaded_transmission
// (spec.md §4.10): launches the worker goroutine. Idempotent failure if
// already running. It takes no scheduling policy or priority: Go's
// scheduler has no portable real-time priority knob, so the worker runs
// as an ordinary goroutine, a documented reduction from the original
// POSIX worker thread (spec.md §5).
func (f *Facade) StartThreadedTransmission() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return errors.New("transmitter: already running")
	}
	if f.ring == nil {
		f.mu.Unlock()
		return errors.New("transmitter: Setup must be called before starting a transmission")
	}
	f.running = true
	params := f.params
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			f.running = false
			f.mu.Unlock()
		}()

		pass := sched.Pass{
			CenterFreq:   params.TargetFreqHz,
			IsWSPR15:     params.IsWSPR15,
			IsTone:       params.IsTone,
			RandomOffset: params.OffsetHz != 0,
			Callsign:     params.Callsign,
			Locator:      params.Locator,
			PowerDBm:     params.PowerDBm,
			PowerLevel:   uint32(params.PowerLevel),
		}
		if err := f.sched.Run(pass); err != nil {
			log.Error("transmission failed", "error", err)
		}
	}()
	return nil
}

// JoinTransmission implements join_transmission: blocks until the worker
// returns.
func (f *Facade) JoinTransmission() { f.wg.Wait() }

// IsStopping reports whether the transmission worker is running; the
// control server shows this as "transmitting". It does not read the
// scheduler's cancellation flag, so it stays true after a stop request
// until the worker has returned.
func (f *Facade) IsStopping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sched == nil {
		return false
	}
	return f.running
}

// Cancel requests the current pass stop without blocking for it to
// finish, satisfying ctlserver.Stopper for the control server's "stop"
// command. ShutdownTransmitter is the blocking, process-teardown form.
func (f *Facade) Cancel() {
	f.mu.Lock()
	s := f.sched
	f.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
}

// ShutdownTransmitter implements shutdown_transmitter: sets the
// cancellation flag and joins the worker.
func (f *Facade) ShutdownTransmitter() {
	f.mu.Lock()
	s := f.sched
	f.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
	f.wg.Wait()
}

// DMACleanup implements dma_cleanup (spec.md §4.10): releases the ring,
// tuning page, and peripheral mappings. Safe to call after
// ShutdownTransmitter; calling it with a running worker is a programming
// error this method does not defend against, by spec.
func (f *Facade) DMACleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	if f.ppm != nil {
		f.ppm.Close()
		f.ppm = nil
	}
	if f.pool != nil {
		if err := f.pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.pool = nil
	}
	if f.mb != nil {
		if err := f.mb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.mb = nil
	}
	if f.rpiMap != nil {
		if err := f.rpiMap.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.rpiMap = nil
	}
	f.ring = nil
	f.sched = nil
	return firstErr
}

// PrintParameters implements print_parameters: a human-readable summary
// that the control server sends to its clients (spec.md §4.10).
func (f *Facade) PrintParameters() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.params
	if p.IsTone {
		return fmt.Sprintf("tone: freq=%.6f Hz offset=%.2f Hz", p.TargetFreqHz, p.OffsetHz)
	}
	mode := "WSPR-2"
	if p.IsWSPR15 {
		mode = "WSPR-15"
	}
	return fmt.Sprintf("%s: call=%s locator=%s power=%ddBm freq=%.6f Hz offset=%.2f Hz ppm_init=%.3f",
		mode, p.Callsign, p.Locator, p.PowerDBm, p.TargetFreqHz, p.OffsetHz, p.PPMInit)
}
