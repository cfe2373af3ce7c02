// Package gpioaux drives the two auxiliary GPIO lines this project uses
// outside the RF path: a debounced shutdown button input and a
// transmit-indicator LED output. Both go through the Linux GPIO
// character-device API via warthog618/go-gpiocdev rather than the raw
// register pokes internal/rpi uses for GPIO4, since neither of these
// lines needs DMA-grade timing (SPEC_FULL.md ambient-stack wiring).
package gpioaux

import (
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("gpioaux")

// debounce matches the teacher's 20ms-ish software debounce window seen
// across the pack's input-handling code; gpiocdev applies it in-kernel.
const debounce = 20 * time.Millisecond

// ShutdownButton watches a momentary-contact button wired active-low and
// invokes onPress once per debounced falling edge.
type ShutdownButton struct {
	line *gpiocdev.Line
}

// NewShutdownButton requests chip/offset as a debounced, pulled-up input
// and reports falling edges to onPress on its own goroutine (owned by
// gpiocdev's internal event handling, per spec.md §5 "no other threads
// touch hardware" referring to the RF path specifically).
func NewShutdownButton(chip string, offset int, onPress func()) (*ShutdownButton, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				log.Debug("shutdown button pressed")
				onPress()
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return &ShutdownButton{line: line}, nil
}

// Close releases the line.
func (b *ShutdownButton) Close() error { return b.line.Close() }

// TXLed drives a GPIO output high for the duration of a transmission.
type TXLed struct {
	line *gpiocdev.Line
}

// NewTXLed requests chip/offset as an output, initially off.
func NewTXLed(chip string, offset int) (*TXLed, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &TXLed{line: line}, nil
}

// On lights the LED.
func (l *TXLed) On() error { return l.line.SetValue(1) }

// Off extinguishes the LED.
func (l *TXLed) Off() error { return l.line.SetValue(0) }

// Close releases the line, leaving it at its last-driven value.
func (l *TXLed) Close() error { return l.line.Close() }
