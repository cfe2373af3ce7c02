// Package mailbox talks to the VideoCore "mailbox property channel" to
// allocate, lock, and free physically-contiguous, uncached DMA memory
// (spec.md §4.2, §6, Component C2).
//
// Grounded on the teacher's device-discovery habits (src/dns_sd.go,
// src/config.go probe /proc and /sys before falling back to a default) and
// on the BCM2835 mailbox property layout documented in
// _examples/usbarmory-tamago/soc/bcm2835/mailbox.go, adapted here from a
// bare-metal register mailbox to the Linux /dev/vcio character-device
// ioctl that userspace programs on Raspberry Pi OS use for the same
// property channel.
package mailbox

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jochenvg/go-udev"

	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("mailbox")

// Property tags used by this package (BCM2835 mailbox property spec).
const (
	tagAllocateMemory = 0x3000C
	tagLockMemory     = 0x3000D
	tagUnlockMemory   = 0x3000E
	tagReleaseMemory  = 0x3000F
)

// AllocFlag selects cache behavior for the allocation; callers pass the
// family-specific value from rpi.Family.MailboxMemFlag (spec.md §4.1).
type AllocFlag uint32

const (
	// MemFlagDirect requests an uncached, direct mapping. ORed with the
	// family-specific bit to produce the flag word the firmware expects.
	MemFlagDirect AllocFlag = 1 << 2
)

// mboxIoctl is _IOWR(100, 0, char*) — the fixed ioctl number the
// bcm2835-vcio driver registers for property-channel calls.
const mboxIoctl = 0xc0046400

// Mailbox is an open handle to the property channel.
type Mailbox struct {
	f *os.File
}

// Open finds and opens the vcio mailbox device. It first tries the
// conventional /dev/vcio path, then falls back to enumerating character
// devices via udev for a "bcm2835-vcio"-subsystem node, matching the
// "platform collaborator may be an ioctl device or a character device"
// language of spec.md §6.
func Open() (*Mailbox, error) {
	if f, err := os.OpenFile("/dev/vcio", os.O_RDWR, 0); err == nil {
		return &Mailbox{f: f}, nil
	}

	path, err := discoverVCIO()
	if err != nil {
		return nil, fmt.Errorf("mailbox: no vcio device found: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("mailbox: open %s: %w", path, err)
	}
	return &Mailbox{f: f}, nil
}

// discoverVCIO scans udev for a device in the "bcm2835-vcio" subsystem
// that has a device node, for boards/distros that don't symlink /dev/vcio.
func discoverVCIO() (string, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("bcm2835-vcio"); err != nil {
		return "", err
	}
	devices, err := enum.Devices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if node := d.Devnode(); node != "" {
			return node, nil
		}
	}
	return "", errors.New("no bcm2835-vcio device node")
}

func (m *Mailbox) Close() error { return m.f.Close() }

// property issues one mailbox property-channel call with a single tag and
// returns the tag's response payload.
func (m *Mailbox) property(tag uint32, req []uint32, respWords int) ([]uint32, error) {
	// Buffer layout: size, code, tag, tag-size, tag-req/resp-size, req..., end-tag.
	valueSize := respWords
	if len(req) > valueSize {
		valueSize = len(req)
	}
	bufWords := 5 + valueSize + 1
	buf := make([]uint32, bufWords)
	buf[0] = uint32(bufWords * 4)
	buf[1] = 0 // process request
	buf[2] = tag
	buf[3] = uint32(valueSize * 4)
	buf[4] = 0 // request indicator
	copy(buf[5:], req)
	buf[bufWords-1] = 0 // end tag

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, m.f.Fd(), mboxIoctl, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return nil, fmt.Errorf("mailbox: ioctl: %w", errno)
	}
	if buf[1] != 0x80000000 {
		return nil, fmt.Errorf("mailbox: firmware rejected request, code=0x%x", buf[1])
	}
	return buf[5 : 5+respWords], nil
}

// AllocateMemory requests size bytes aligned to align, tagged with flags.
// Returns the firmware's memory handle.
func (m *Mailbox) AllocateMemory(size, align uint32, flags AllocFlag) (uint32, error) {
	resp, err := m.property(tagAllocateMemory, []uint32{size, align, uint32(flags)}, 1)
	if err != nil {
		return 0, err
	}
	if resp[0] == 0 {
		return 0, errors.New("mailbox: allocate_memory returned handle 0")
	}
	return resp[0], nil
}

// LockMemory pins the allocation and returns its bus address.
func (m *Mailbox) LockMemory(handle uint32) (uint32, error) {
	resp, err := m.property(tagLockMemory, []uint32{handle}, 1)
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

// UnlockMemory unpins the allocation.
func (m *Mailbox) UnlockMemory(handle uint32) error {
	_, err := m.property(tagUnlockMemory, []uint32{handle}, 1)
	return err
}

// ReleaseMemory returns the allocation to the firmware.
func (m *Mailbox) ReleaseMemory(handle uint32) error {
	_, err := m.property(tagReleaseMemory, []uint32{handle}, 1)
	return err
}
