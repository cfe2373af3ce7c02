// Package dmaring builds and drives the 1024-entry DMA control-block ring
// and the 1024-word tuning table that together synthesize the dithered
// GPCLK0 output (spec.md §3, §4.3, §4.4, Components C3/C4).
//
// The control-block field layout is grounded on
// _examples/simokawa-periph/host/bcm283x/dma.go's controlBlock struct and
// on the bit constants in other_examples/265d36ef (bcm283x clock.go) and
// other_examples's bcm283x dma.go — this package serializes the same struct
// shape into a raw mmap'd byte slice with encoding/binary rather than
// reimplementing the register geometry from scratch.
package dmaring

import (
	"encoding/binary"
)

// ControlBlock is the 32-byte hardware descriptor consumed by DMA channel 0
// (spec.md §3 "DMA control block").
type ControlBlock struct {
	TransferInfo uint32
	SrcAddr      uint32
	DstAddr      uint32
	TxLen        uint32
	Stride       uint32
	NextCB       uint32
	_reserved    [2]uint32
}

const controlBlockSize = 32

// DMA transfer-info bits this package uses (spec.md §3, §4.3).
const (
	tiNoWideBursts = 1 << 26
	tiWaitResp     = 1 << 3
	tiDestDReq     = 1 << 6
	tiPermapShift  = 16
	permapPWM      = 5 // peripheral mapping #5
)

// divWriteTransferInfo is the transfer-info word for a "write tuning word
// to CM_GP0DIV" block: no wide bursts, no pacing (spec.md §3).
const divWriteTransferInfo = tiNoWideBursts | tiWaitResp

// pacingTransferInfo is the transfer-info word for a "wait N PWM clocks via
// FIFO write" block: DREQ gated on the PWM peripheral (spec.md §3).
const pacingTransferInfo = tiNoWideBursts | tiWaitResp | tiDestDReq | (permapPWM << tiPermapShift)

// writeControlBlock serializes a ControlBlock into its backing 32-byte
// mmap'd region. The DMA engine only ever reads these bytes; software is
// the sole writer, so a plain little-endian encode (matching the BCM283x
// bus byte order) is sufficient — no atomics are required here because the
// ring protocol in ring.go never writes a block while DMA_CONBLK_AD points
// at it (spec.md §3, §4.3 "software writes to a control block i only when
// DMA_CONBLK_AD != bus_addr(ring[i])").
func writeControlBlock(dst []byte, cb ControlBlock) {
	binary.LittleEndian.PutUint32(dst[0:4], cb.TransferInfo)
	binary.LittleEndian.PutUint32(dst[4:8], cb.SrcAddr)
	binary.LittleEndian.PutUint32(dst[8:12], cb.DstAddr)
	binary.LittleEndian.PutUint32(dst[12:16], cb.TxLen)
	binary.LittleEndian.PutUint32(dst[16:20], cb.Stride)
	binary.LittleEndian.PutUint32(dst[20:24], cb.NextCB)
	binary.LittleEndian.PutUint32(dst[24:28], 0)
	binary.LittleEndian.PutUint32(dst[28:32], 0)
}

func readControlBlock(src []byte) ControlBlock {
	return ControlBlock{
		TransferInfo: binary.LittleEndian.Uint32(src[0:4]),
		SrcAddr:      binary.LittleEndian.Uint32(src[4:8]),
		DstAddr:      binary.LittleEndian.Uint32(src[8:12]),
		TxLen:        binary.LittleEndian.Uint32(src[12:16]),
		Stride:       binary.LittleEndian.Uint32(src[16:20]),
		NextCB:       binary.LittleEndian.Uint32(src[20:24]),
	}
}
