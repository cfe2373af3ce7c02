// Package rpi maps the BCM283x/BCM2711 peripheral register window into the
// process address space and provides typed, volatile-safe accessors
// (spec.md §4.1, Component C1).
//
// Grounded on the teacher's peripheral-discovery style in
// src/config.go (/proc, /sys probing) and on the register-struct idiom used
// throughout the periph.io bcm283x host driver (other_examples clock.go,
// dma.go) and simokawa-periph/host/bcm283x/dma.go.
package rpi

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("rpi")

// Family identifies the SoC generation, which determines the PLLD nominal
// frequency and the mailbox memory-allocation flag (spec.md §4.1).
type Family int

const (
	FamilyBCM2835 Family = iota // Pi 1 / Zero
	FamilyBCM2836               // Pi 2
	FamilyBCM2837               // Pi 3
	FamilyBCM2711               // Pi 4
)

// PLLDNominalHz returns the nominal PLLD frequency for this family. Pi 1
// class hardware is nudged down by 2.5 ppm to compensate a measured
// systematic NTP-vs-crystal offset (spec.md §4.1).
func (f Family) PLLDNominalHz() float64 {
	if f == FamilyBCM2711 {
		return 750e6
	}
	nominal := 500e6
	if f == FamilyBCM2835 {
		nominal *= 1 - 2.5e-6
	}
	return nominal
}

// MailboxMemFlag is the mailbox memory-allocation flag for this family:
// 0x0C on BCM2835, 0x04 otherwise (spec.md §4.1).
func (f Family) MailboxMemFlag() uint32 {
	if f == FamilyBCM2835 {
		return 0x0C
	}
	return 0x04
}

func parseFamily(compatible string) Family {
	switch {
	case strings.Contains(compatible, "bcm2711"):
		return FamilyBCM2711
	case strings.Contains(compatible, "bcm2837"):
		return FamilyBCM2837
	case strings.Contains(compatible, "bcm2836"):
		return FamilyBCM2836
	default:
		return FamilyBCM2835
	}
}

// DetectFamily reads /sys/firmware/devicetree/base/compatible, which is a
// NUL-separated list of compatible strings; the first "bcmNNNN" token wins
// (spec.md §4.1, §6).
func DetectFamily() Family {
	raw, err := os.ReadFile("/sys/firmware/devicetree/base/compatible")
	if err != nil {
		log.Warn("compatible read failed, assuming bcm2835", "err", err)
		return FamilyBCM2835
	}
	for _, tok := range strings.Split(string(raw), "\x00") {
		if strings.HasPrefix(tok, "brcm,bcm") || strings.HasPrefix(tok, "bcm") {
			return parseFamily(tok)
		}
	}
	return FamilyBCM2835
}

// DetectPeripheralBase reads bytes 4..8 of /proc/device-tree/soc/ranges
// (big-endian uint32); if zero, retries at offset 8; falls back to
// 0x20000000 (spec.md §4.1).
func DetectPeripheralBase() uint32 {
	raw, err := os.ReadFile("/proc/device-tree/soc/ranges")
	if err != nil || len(raw) < 12 {
		log.Warn("soc/ranges read failed, falling back", "err", err)
		return 0x20000000
	}
	be32 := func(off int) uint32 {
		return uint32(raw[off])<<24 | uint32(raw[off+1])<<16 | uint32(raw[off+2])<<8 | uint32(raw[off+3])
	}
	if base := be32(4); base != 0 {
		return base
	}
	if base := be32(8); base != 0 {
		return base
	}
	log.Warn("soc/ranges both offsets zero, falling back")
	return 0x20000000
}

// Map is the process-wide mapping of the peripheral register window. It is
// constructed once per process; construction failure is fatal to the
// caller (spec.md §4.1, §7 MappingFailed).
type Map struct {
	file     *os.File
	mem      []byte
	busBase  uint32 // peripheral base as seen from the bus (0x7Ennnnnn)
	phyBase  int64  // physical address /dev/mem was mapped at
	Family   Family
	Plld     float64
}

const mapSize = 0x01000000 // 16 MiB covers GPIO..DMA..PWM..CM on every family

// Open maps /dev/mem at the detected peripheral base. It must be called
// exactly once per process; the mapping is released only at process exit
// (spec.md §4.1 "never unmapped during normal operation").
func Open() (*Map, error) {
	family := DetectFamily()
	phyBase := int64(DetectPeripheralBase())

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("rpi: open /dev/mem: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), phyBase, mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("rpi: mmap peripherals: %w", err)
	}

	m := &Map{
		file:    f,
		mem:     mem,
		busBase: peripheralBusBase,
		phyBase: phyBase,
		Family:  family,
		Plld:    family.PLLDNominalHz(),
	}
	log.Info("peripheral map opened", "family", family, "phys_base", fmt.Sprintf("0x%x", phyBase), "plld_hz", m.Plld)
	return m, nil
}

// Close unmaps the peripheral window. Normally only called from process
// teardown paths/tests, never while the DMA engine or worker thread is
// live (spec.md §4.1).
func (m *Map) Close() error {
	if m.mem != nil {
		if err := unix.Munmap(m.mem); err != nil {
			return err
		}
		m.mem = nil
	}
	return m.file.Close()
}

func (m *Map) offset(busAddr uint32) uint32 {
	return busAddr - m.busBase
}

// word returns the 4-byte slice backing a given bus address, for use with
// sync/atomic loads/stores. Using atomic rather than a plain slice index
// is this package's volatile-semantics contract: the compiler may not
// reorder or elide these accesses relative to one another (spec.md §3
// Peripheral window invariant).
func (m *Map) word(busAddr uint32) *uint32 {
	off := m.offset(busAddr)
	return (*uint32)(unsafeWordPtr(m.mem, off))
}

// Access reads the current value at a bus address.
func (m *Map) Access(busAddr uint32) uint32 {
	return atomic.LoadUint32(m.word(busAddr))
}

// Write stores a value at a bus address.
func (m *Map) Write(busAddr, value uint32) {
	atomic.StoreUint32(m.word(busAddr), value)
}

// SetBit sets one bit at a bus address via read-modify-write.
func (m *Map) SetBit(busAddr uint32, bit uint) {
	p := m.word(busAddr)
	atomic.StoreUint32(p, atomic.LoadUint32(p)|(1<<bit))
}

// ClearBit clears one bit at a bus address via read-modify-write.
func (m *Map) ClearBit(busAddr uint32, bit uint) {
	p := m.word(busAddr)
	atomic.StoreUint32(p, atomic.LoadUint32(p)&^(1<<bit))
}

// BusToPhys clears the top two bits (0xC0000000 cache alias mask), per
// spec.md §4.1.
func BusToPhys(busAddr uint32) uint32 {
	return busAddr &^ cacheAliasMask
}
