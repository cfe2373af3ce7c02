package dmaring

import (
	"fmt"
	"time"

	"github.com/lbussy/WsprryPi-sub001/internal/mailbox"
	"github.com/lbussy/WsprryPi-sub001/internal/rpi"
)

// RingSize is the fixed control-block count (spec.md §3 "Ring").
const RingSize = 1024

// Ring is the circular list of DMA control blocks driving CM_GP0DIV and the
// PWM FIFO (spec.md §3 "Ring", §4.3, Component C3).
//
// Each control block lives in its own mailbox page; spec.md §4.2 sizes the
// pool at 1025 pages (1024 for the ring plus one for the tuning table) on
// the assumption that blocks are not packed, which keeps each block's
// page independently nudge-able without touching its neighbors.
type Ring struct {
	rpiMap *rpi.Map
	pages  [RingSize]mailbox.Page
	Tuning *TuningTable
}

// Build allocates the tuning-table page first, then RingSize control-block
// pages, and wires ring[i].NextCB = bus_addr(ring[(i+1) mod RingSize])
// (spec.md §4.3, §9 "DMA descriptor ring with self-referential next
// pointers").
func Build(rpiMap *rpi.Map, pool *mailbox.Pool) (*Ring, error) {
	if pool.Remaining() < RingSize+1 {
		return nil, fmt.Errorf("dmaring: pool has %d pages, need %d", pool.Remaining(), RingSize+1)
	}

	tuningPage := pool.Acquire()
	r := &Ring{
		rpiMap: rpiMap,
		Tuning: NewTuningTable(tuningPage),
	}
	for i := 0; i < RingSize; i++ {
		r.pages[i] = pool.Acquire()
	}
	for i := 0; i < RingSize; i++ {
		next := r.pages[(i+1)%RingSize].Bus
		cb := ControlBlock{
			TransferInfo: divWriteTransferInfo,
			SrcAddr:      r.Tuning.BusAddr(8), // safe filler until first Configure
			DstAddr:      rpi.CMGP0DIV,
			TxLen:        4,
			NextCB:       next,
		}
		writeControlBlock(r.pages[i].Virt, cb)
	}
	return r, nil
}

// BusAddr returns the bus address of ring slot i.
func (r *Ring) BusAddr(i int) uint32 { return r.pages[i%RingSize].Bus }

// waitUntilIdle busy-waits (spec.md's ~100us polls) until DMA_CONBLK_AD no
// longer equals the bus address of slot i, i.e. the engine has moved past
// the block we're about to overwrite (spec.md §4.3, §4.5, §5).
func (r *Ring) waitUntilIdle(i int) {
	target := r.BusAddr(i)
	for r.rpiMap.Access(rpi.DMACONBLKAD) == target {
		time.Sleep(100 * time.Microsecond)
	}
}

// ConfigureDividerWrite programs ring slot i as a "write tuning word to
// CM_GP0DIV" block for the given table slot (spec.md §3, §4.3).
func (r *Ring) ConfigureDividerWrite(i, tuningSlot int) {
	r.waitUntilIdle(i)
	cb := ControlBlock{
		TransferInfo: divWriteTransferInfo,
		SrcAddr:      r.Tuning.BusAddr(tuningSlot),
		DstAddr:      rpi.CMGP0DIV,
		TxLen:        4,
		NextCB:       r.BusAddr(i + 1),
	}
	writeControlBlock(r.pages[i%RingSize].Virt, cb)
}

// ConfigurePacing programs ring slot i as a "wait N PWM clocks via FIFO
// write" block for the given table slot and dwell count (spec.md §3,
// §4.3).
func (r *Ring) ConfigurePacing(i, tuningSlot int, pwmClocks uint32) {
	r.waitUntilIdle(i)
	cb := ControlBlock{
		TransferInfo: pacingTransferInfo,
		SrcAddr:      r.Tuning.BusAddr(tuningSlot),
		DstAddr:      rpi.PWMFIF1,
		TxLen:        pwmClocks,
		NextCB:       r.BusAddr(i + 1),
	}
	writeControlBlock(r.pages[i%RingSize].Virt, cb)
}

// Start programs the PWM clock manager and control registers, then starts
// DMA channel 0 at ring slot 0 (spec.md §4.3).
func (r *Ring) Start() {
	m := r.rpiMap

	// PWM clock: source PLLD, divisor 2 -> 250MHz nominal (spec.md §4.3).
	m.Write(rpi.CMPWMCTL, rpi.ClockManagerPassword|rpi.CMSrcPLLD)
	for m.Access(rpi.CMPWMCTL)&rpi.CMBusy != 0 {
		time.Sleep(10 * time.Microsecond)
	}
	m.Write(rpi.CMPWMDIV, rpi.ClockManagerPassword|(2<<12))
	m.Write(rpi.CMPWMCTL, rpi.ClockManagerPassword|rpi.CMSrcPLLD|rpi.CMEnab)

	m.Write(rpi.PWMRNG1, 32)
	m.Write(rpi.PWMRNG2, 32)
	m.Write(rpi.PWMCTL, rpi.PWMCTLMax)
	m.Write(rpi.PWMDMAC, rpi.PWMDMACValue)

	// Reset DMA channel 0, then start at ring slot 0.
	m.Write(rpi.DMACS, rpi.DMAReset)
	for m.Access(rpi.DMACS)&rpi.DMAReset != 0 {
		time.Sleep(10 * time.Microsecond)
	}
	m.Write(rpi.DMACONBLKAD, r.BusAddr(0))
	const priority255 = 255 << 16
	const panicPriority15 = 15 << 20
	m.Write(rpi.DMACS, rpi.DMAActive|priority255|panicPriority15)
}

// Stop resets DMA channel 0 (spec.md §4.9 teardown step 2).
func (r *Ring) Stop() {
	r.rpiMap.Write(rpi.DMACS, rpi.DMAReset)
}
