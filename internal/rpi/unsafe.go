package rpi

import "unsafe"

// unsafeWordPtr returns a pointer to the uint32 at byte offset off within
// mem. Isolated in its own file so the single unsafe.Pointer cast this
// package needs is easy to audit.
func unsafeWordPtr(mem []byte, off uint32) unsafe.Pointer {
	return unsafe.Pointer(&mem[off])
}
