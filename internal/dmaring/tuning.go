package dmaring

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lbussy/WsprryPi-sub001/internal/mailbox"
	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("dmaring")

// ToneSpacing is the WSPR-2 tone spacing: 1 / 0.682667s (spec.md §4.4).
const ToneSpacing = 1.0 / 0.682667

// WSPR15ToneSpacing is the WSPR-15 tone spacing, one fifth of WSPR-2's.
const WSPR15ToneSpacing = ToneSpacing / 5

const tuningWordPassword = 0x5A000000

// tuningEntries is the table size: 8 real entries (4 tones x 2 dither
// words) plus 1016 filler entries (spec.md §3, §4.4).
const tuningEntries = 1024

// TuningTable is the 1024-word fractional-divider table stored in one
// uncached page (spec.md §3 "Tuning table", §4.4).
type TuningTable struct {
	page mailbox.Page

	// toneFreq/f0Freq/f1Freq hold, per tone 0-3, the target frequency and
	// the two frequencies actually produced by the low/high dither words,
	// so Build's caller can dither between them to average out to
	// toneFreq (dma_handler.cpp:339 txSym, ":362" f0_ratio).
	toneFreq [4]float64
	f0Freq   [4]float64
	f1Freq   [4]float64
}

// NewTuningTable wraps a page the caller has already acquired from the
// pool as the table's storage.
func NewTuningTable(page mailbox.Page) *TuningTable {
	return &TuningTable{page: page}
}

// BusAddr returns the bus address of table slot i, for use as a DMA
// control block's source address.
func (t *TuningTable) BusAddr(i int) uint32 {
	return t.page.Bus + uint32(i*4)
}

func (t *TuningTable) set(i int, word uint32) {
	binary.LittleEndian.PutUint32(t.page.Virt[i*4:i*4+4], word)
}

// trunc12 truncates x to a 12-bit fractional fixed point value, per
// spec.md §4.4 trunc12(x) = floor(x * 2^12) / 2^12.
func trunc12(x float64) float64 {
	return math.Floor(x*4096) / 4096
}

// packTuningWord builds the 0x5A<<24 | divisor*2^12 word described in
// spec.md §3 "Tuning word".
func packTuningWord(divisor float64) uint32 {
	return tuningWordPassword | (uint32(math.Round(divisor*4096)) & 0x00FFFFFF)
}

// BuildResult reports what Build actually did, for the façade/scheduler to
// log and, on a nudge, to re-resolve the frequency offset from
// (spec.md §4.4, §7 TuningInvariantBroken, §8 Scenario D).
type BuildResult struct {
	CenterActual float64
	Nudged       bool
}

// Build rebuilds the tuning table for centerDesired, given the current PPM
// estimate, following spec.md §4.4 steps 1-5.
func (t *TuningTable) Build(centerDesired, plldNominal, ppm, spacing float64) (BuildResult, error) {
	plldActual := plldNominal * (1 - ppm*1e-6)

	divLo := trunc12(plldActual/(centerDesired-1.5*spacing)) + 1.0/4096
	divHi := trunc12(plldActual / (centerDesired + 1.5*spacing))

	centerActual := centerDesired
	nudged := false
	if math.Floor(divLo) != math.Floor(divHi) {
		centerActual = plldActual/math.Floor(divLo) - 1.6*spacing
		nudged = true
		log.Warn("tuning invariant would break, nudging center frequency",
			"center_desired", centerDesired, "center_actual", centerActual)
	}

	var toneWords [8]uint32
	for i := 0; i < 4; i++ {
		toneFreq := (centerActual - 1.5*spacing) + float64(i)*spacing
		lowDither := trunc12(plldActual/toneFreq) + 1.0/4096
		highDither := trunc12(plldActual / toneFreq)
		toneWords[2*i] = packTuningWord(lowDither)
		toneWords[2*i+1] = packTuningWord(highDither)

		t.toneFreq[i] = toneFreq
		t.f0Freq[i] = plldActual / lowDither
		t.f1Freq[i] = plldActual / highDither
	}

	for k := 0; k < 4; k++ {
		if (toneWords[2*k] & ^uint32(0xFFF)) != (toneWords[2*k+1] & ^uint32(0xFFF)) {
			return BuildResult{}, fmt.Errorf("dmaring: tuning invariant broken for tone %d: %#x vs %#x",
				k, toneWords[2*k], toneWords[2*k+1])
		}
	}

	for i, w := range toneWords {
		t.set(i, w)
	}

	for i := 8; i < tuningEntries; i++ {
		fillerDivisor := 500.0 + float64(i)
		t.set(i, packTuningWord(fillerDivisor))
	}

	return BuildResult{CenterActual: centerActual, Nudged: nudged}, nil
}

// ToneSlot returns the (low-dither, high-dither) table indices for symbol
// s in {0,1,2,3} (spec.md §3 "entries 0/1, 2/3, 4/5, 6/7").
func ToneSlot(symbol int) (lo, hi int) {
	return 2 * symbol, 2*symbol + 1
}

// F0Ratio returns the fraction of a dithered pass that should land on the
// low (f0) tuning word for tone s, so that averaging the low/high words
// over time converges on the tone's exact target frequency rather than
// systematically sitting on the f0 bracket (dma_handler.cpp:362):
//
//	f0_ratio = 1 - (tone_freq - f0_freq) / (f1_freq - f0_freq)
func (t *TuningTable) F0Ratio(s int) float64 {
	toneFreq, f0, f1 := t.toneFreq[s], t.f0Freq[s], t.f1Freq[s]
	if f1 == f0 {
		return 1.0
	}
	ratio := 1 - (toneFreq-f0)/(f1-f0)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
