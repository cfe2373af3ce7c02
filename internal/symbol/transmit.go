// Package symbol drives the DMA ring to emit one WSPR/tone symbol for a
// given dwell time, dithering between a symbol's two tuning-table entries
// (spec.md §4.5, Component C5).
package symbol

import (
	"math"
	"math/rand"

	"github.com/lbussy/WsprryPi-sub001/internal/dmaring"
	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("symbol")

// Transmitter walks the ring two slots at a time, alternating f0/f1 dither
// writes, and owns the monotonically advancing ring cursor across
// consecutive symbols (spec.md §4.5, §4.9 "the transition happens in-place
// by rewriting ring blocks ahead of the DMA cursor").
type Transmitter struct {
	ring   *dmaring.Ring
	cursor int
	rng    *rand.Rand
}

// NewTransmitter tolerates an arbitrary starting ring cursor (spec.md §9
// Open Questions: "exact initial state of DMA_CONBLK_AD ... not
// guaranteed").
func NewTransmitter(ring *dmaring.Ring, seed int64) *Transmitter {
	return &Transmitter{ring: ring, rng: rand.New(rand.NewSource(seed))}
}

// minChunk/maxChunk bound the randomized per-pass dwell chunk in PWM
// clocks (spec.md §4.5 step 3, "n ~= 1000 +/- 500").
const (
	minChunk = 500
	maxChunk = 1500
)

// SendRatio transmits symbol s in {0,1,2,3} for dwell seconds at PWM clock
// frequency fPWM. f0Ratio is the fraction of each
// dithered pass spent on the low-dither tuning slot, computed by the
// caller from the symbol's target frequency relative to the f0/f1 tuning
// words (spec.md §4.5 step 2): f0_ratio = 1 - (tone_freq-f0_freq)/(f1_freq-f0_freq).
func (t *Transmitter) SendRatio(s int, dwell, fPWM, f0Ratio float64) {
	if f0Ratio < 0 || f0Ratio > 1 {
		panic("symbol: f0Ratio out of [0,1]")
	}
	lo, hi := dmaring.ToneSlot(s)
	n := uint64(math.Round(fPWM * dwell))
	log.Debug("sending symbol", "symbol", s, "clocks", n, "f0_ratio", f0Ratio)
	t.sendClocks(lo, hi, n, f0Ratio)
}

// sendClocks dithers n total PWM clocks between table slots lo (f0) and hi
// (f1) at the given f0Ratio, in randomized chunks of 500-1500 clocks
// (spec.md §4.5 step 3). Each half-chunk advances the ring cursor by one
// (divider-write, pacing) pair (spec.md §4.5 step 4).
func (t *Transmitter) sendClocks(lo, hi int, n uint64, f0Ratio float64) {
	var total, totalF0 uint64
	for total < n {
		chunk := uint64(minChunk + t.rng.Intn(maxChunk-minChunk+1))
		if total+chunk > n {
			chunk = n - total
		}
		if chunk == 0 {
			break
		}
		total += chunk

		targetF0 := uint64(math.Round(f0Ratio * float64(total)))
		nF0 := targetF0 - totalF0
		if nF0 > chunk {
			nF0 = chunk
		}
		nF1 := chunk - nF0
		totalF0 += nF0

		if nF0 > 0 {
			t.advance(lo, uint32(nF0))
		}
		if nF1 > 0 {
			t.advance(hi, uint32(nF1))
		}
	}
}

// advance programs the next (divider-write, pacing) pair at the ring
// cursor to hold tuningSlot for pwmClocks clocks, busy-waiting on
// DMA_CONBLK_AD before each write (spec.md §4.5 step 4, §4.3).
func (t *Transmitter) advance(tuningSlot int, pwmClocks uint32) {
	dividerIdx := t.cursor
	pacingIdx := t.cursor + 1

	t.ring.ConfigureDividerWrite(dividerIdx, tuningSlot)
	t.ring.ConfigurePacing(pacingIdx, tuningSlot, pwmClocks)

	t.cursor = (t.cursor + 2) % dmaring.RingSize
}
