package mailbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/lbussy/WsprryPi-sub001/internal/rpi"
)

func openDevMem() (*os.File, error) {
	return os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
}

// PageSize is the fixed uncached page size (spec.md §3 "Uncached page").
const PageSize = 4096

// Page is a paired (bus address, virtual address) handle into the pool's
// backing allocation.
type Page struct {
	Bus  uint32
	Virt []byte
}

// Pool is a pool of physically-contiguous, uncached pages allocated once
// via the mailbox property channel and handed out sequentially
// (spec.md §3 "Uncached page", §4.2, Component C2).
type Pool struct {
	mb       *Mailbox
	handle   uint32
	busBase  uint32
	mem      []byte
	capacity int
	cursor   int
}

// NewPool allocates capacity pages of uncached RAM with the given family
// memory flag, locks them for a bus address, and maps them into this
// process. capacity must be at least 1025 to cover the default 1024-entry
// ring plus the tuning-table page (spec.md §4.2).
func NewPool(mb *Mailbox, capacity int, family rpi.Family) (*Pool, error) {
	size := uint32(capacity * PageSize)
	flags := MemFlagDirect | AllocFlag(family.MailboxMemFlag())

	handle, err := mb.AllocateMemory(size, PageSize, flags)
	if err != nil {
		return nil, fmt.Errorf("mailbox: allocate pool: %w", err)
	}

	busBase, err := mb.LockMemory(handle)
	if err != nil {
		_ = mb.ReleaseMemory(handle)
		return nil, fmt.Errorf("mailbox: lock pool: %w", err)
	}

	phys := int64(rpi.BusToPhys(busBase))
	memFile, err := openDevMem()
	if err != nil {
		_ = mb.UnlockMemory(handle)
		_ = mb.ReleaseMemory(handle)
		return nil, err
	}
	defer memFile.Close()

	mem, err := unix.Mmap(int(memFile.Fd()), phys, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = mb.UnlockMemory(handle)
		_ = mb.ReleaseMemory(handle)
		return nil, fmt.Errorf("mailbox: mmap pool: %w", err)
	}

	log.Info("uncached pool mapped", "pages", capacity, "bus_base", fmt.Sprintf("0x%x", busBase))

	return &Pool{
		mb:       mb,
		handle:   handle,
		busBase:  busBase,
		mem:      mem,
		capacity: capacity,
	}, nil
}

// Acquire hands out the next page. Calling it more than capacity times
// between construction and Close is a fatal programming error
// (spec.md §4.2 invariant).
func (p *Pool) Acquire() Page {
	if p.cursor >= p.capacity {
		panic("mailbox: pool exhausted: acquire called more than capacity times")
	}
	off := p.cursor * PageSize
	pg := Page{
		Bus:  p.busBase + uint32(off),
		Virt: p.mem[off : off+PageSize],
	}
	p.cursor++
	return pg
}

// Remaining reports how many pages are still available.
func (p *Pool) Remaining() int { return p.capacity - p.cursor }

// Close unmaps, unlocks, and frees the allocation in that order, tolerating
// partial initialization (spec.md §4.2 teardown).
func (p *Pool) Close() error {
	var firstErr error
	if p.mem != nil {
		if err := unix.Munmap(p.mem); err != nil && firstErr == nil {
			firstErr = err
		}
		p.mem = nil
	}
	if p.handle != 0 {
		if err := p.mb.UnlockMemory(p.handle); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := p.mb.ReleaseMemory(p.handle); err != nil && firstErr == nil {
			firstErr = err
		}
		p.handle = 0
	}
	return firstErr
}
