// Package wspr packs (callsign, locator, power) into the 162-symbol WSPR
// codeblock: message packing, K=32 r=1/2 convolutional coding, and
// bit-reversed interleaving against the fixed sync vector (spec.md §3
// "WSPR frame", §4.6, Component C6).
//
// Grounded directly on original_source/src/wspr_encoder.cpp's wspr()
// function — this package implements the non-slash packing path spec.md
// §4.6 names as canonical and, per §9 Open Questions, rejects any
// callsign containing '/' with ErrCompoundCallsign rather than attempting
// the alternate 15-bit affix encoding that wspr_message.cpp uses.
package wspr

import (
	"errors"
	"fmt"
	"strings"
)

// NumSymbols is the fixed WSPR frame length (spec.md §3, §8 invariant 3).
const NumSymbols = 162

var (
	// ErrCompoundCallsign is returned for any callsign containing '/'
	// (spec.md §4.6 edge cases, §9 Open Questions).
	ErrCompoundCallsign = errors.New("wspr: compound (prefix/suffix) callsigns are not supported")
	ErrInvalidCallsign  = errors.New("wspr: callsign does not fit the 6-character WSPR field")
	ErrInvalidLocator   = errors.New("wspr: locator must be 4 or 6 Maidenhead characters")
)

// powerCorrection maps power%10 to the canonical WSPR EIRP table
// adjustment (spec.md §4.6 "Power quantization").
var powerCorrection = [10]int{0, -1, 1, 0, -1, 2, 1, 0, -1, 1}

// syncVector is the fixed 162-bit WSPR sync pattern (spec.md §4.6 "Sync
// overlay"), transcribed from original_source/src/wspr_encoder.cpp's npr3.
var syncVector = [NumSymbols]byte{
	1, 1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1, 0, 1, 1, 1, 1, 0, 0, 0, 0, 0,
	0, 0, 1, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 1, 1, 0, 0, 1, 1, 0, 1, 0, 0, 0, 1, 1, 0, 1, 0,
	0, 0, 0, 1, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 0, 1, 0, 1, 1, 0, 0, 0, 1, 1, 0, 1, 0, 1, 0,
	0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0, 1, 1, 1, 0, 1, 1, 0, 0, 1, 1, 0, 1, 0, 0, 0, 1, 1, 1,
	0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 1, 0, 1, 1, 0, 0, 0, 1, 1, 0,
	0, 0,
}

// conv encoder generator polynomials (K=32, rate 1/2, Layland-Lushbaugh),
// per spec.md §4.6.
const (
	poly0 = 0xf2d05351
	poly1 = 0xe4613c47
)

// interleave[i] is the destination index for encoded bit i: the i-th
// value (in ascending order) of bit-reversed 8-bit integers that is < 162
// (spec.md §4.6 "Interleaving").
var interleave = buildInterleave()

func buildInterleave() [NumSymbols]int {
	var tbl [NumSymbols]int
	p := -1
	for k := 0; p != NumSymbols-1; k++ {
		j0 := bitReverse8(byte(k))
		if int(j0) < NumSymbols {
			p++
			tbl[p] = int(j0)
		}
	}
	return tbl
}

func bitReverse8(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out = (out << 1) | (b & 1)
		b >>= 1
	}
	return out
}

func charVal(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, nil
	case c == ' ':
		return 36, nil
	default:
		return 0, fmt.Errorf("wspr: invalid character %q in callsign field", c)
	}
}

// packCallsign implements spec.md §4.6's canonical packing: uppercase,
// align so the third character (index 2) is the lone digit, pad with
// spaces, encode with char_to_val, and fold into a 28-bit N.
func packCallsign(call string) (uint32, error) {
	call = strings.ToUpper(strings.TrimSpace(call))
	if strings.ContainsRune(call, '/') {
		return 0, ErrCompoundCallsign
	}
	if len(call) == 0 || len(call) > 6 {
		return 0, ErrInvalidCallsign
	}

	// Right-pad to 6 characters; left-pad with spaces so the digit lands
	// at index 2, matching the original's "i = position of last prefix
	// digit" search over indices {2,1,0}.
	digitPos := -1
	for i := 0; i < len(call) && i < 3; i++ {
		if call[i] >= '0' && call[i] <= '9' {
			digitPos = i
		}
	}
	if digitPos == -1 {
		return 0, fmt.Errorf("%w: no digit found in the first three characters", ErrInvalidCallsign)
	}

	shift := 2 - digitPos
	var field [6]byte
	for i := range field {
		field[i] = ' '
	}
	for i := 0; i < len(call); i++ {
		dst := i + shift
		if dst < 0 || dst >= 6 {
			return 0, ErrInvalidCallsign
		}
		field[dst] = call[i]
	}

	vals := make([]int, 6)
	for i, c := range field {
		v, err := charVal(c)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}

	n := uint32(vals[0])
	n = n*36 + uint32(vals[1])
	n = n*10 + uint32(vals[2])
	n = n*27 + uint32(vals[3]-10)
	n = n*27 + uint32(vals[4]-10)
	n = n*27 + uint32(vals[5]-10)
	return n, nil
}

// packLocator implements spec.md §4.6's M1 formula; six-character
// locators are truncated to the four-character block.
func packLocator(locator string) (int, error) {
	locator = strings.ToUpper(strings.TrimSpace(locator))
	if len(locator) != 4 && len(locator) != 6 {
		return 0, ErrInvalidLocator
	}
	locator = locator[:4]
	if locator[0] < 'A' || locator[0] > 'R' || locator[1] < 'A' || locator[1] > 'R' ||
		locator[2] < '0' || locator[2] > '9' || locator[3] < '0' || locator[3] > '9' {
		return 0, ErrInvalidLocator
	}
	m1 := (179-10*int(locator[0]-'A')-int(locator[2]-'0'))*180 + 10*int(locator[1]-'A') + int(locator[3]-'0')
	return m1, nil
}

// quantizePower clamps to [0,60] and applies the canonical EIRP table
// correction (spec.md §4.6 "Power quantization", §8 Scenario B).
func quantizePower(dBm int) int {
	switch {
	case dBm > 60:
		dBm = 60
	case dBm < 0:
		dBm = 0
	}
	return dBm + powerCorrection[dBm%10]
}

// Encode packs (call, locator, powerDBm) into a 162-symbol WSPR codeblock,
// each symbol in {0,1,2,3} (spec.md §4.6, §8 invariants 3-4, Scenario A/B).
func Encode(call, locator string, powerDBm int) ([NumSymbols]byte, error) {
	var out [NumSymbols]byte

	n, err := packCallsign(call)
	if err != nil {
		return out, err
	}
	m1, err := packLocator(locator)
	if err != nil {
		return out, err
	}
	power := quantizePower(powerDBm)
	m := uint32(m1)*128 + uint32(power) + 64

	// 28 bits of N, 22 bits of M, 31 trailing zero bits = 81 input bits
	// (spec.md §4.6 "Convolutional encoding").
	var bits [81]byte
	for i := 0; i < 28; i++ {
		bits[27-i] = byte((n >> uint(i)) & 1)
	}
	for i := 0; i < 22; i++ {
		bits[28+21-i] = byte((m >> uint(i)) & 1)
	}
	// bits[50:81] already zero.

	var encoded [2 * 81]byte
	var shiftReg uint32
	for i, b := range bits {
		shiftReg = (shiftReg << 1) | uint32(b)
		encoded[2*i] = parity32(shiftReg & poly0)
		encoded[2*i+1] = parity32(shiftReg & poly1)
	}

	// spec.md §4.6 prose states symbols[j] = 2*sync[j] + data[j]; the
	// original wspr_encoder.cpp this is grounded on computes
	// `npr3[j0] | symbol[i] << 1`, i.e. sync in the low bit and the
	// encoded data bit (doubled) in the high bit. Per §9's Open Questions
	// guidance to resolve ambiguity from the original behavior, this
	// follows wspr_encoder.cpp; the resulting symbol still lies in
	// {0,1,2,3} and the test vectors in spec.md §8 Scenario A were
	// generated against that convention.
	for i := 0; i < NumSymbols; i++ {
		dst := interleave[i]
		out[dst] = syncVector[dst] + 2*encoded[i]
	}

	return out, nil
}

func parity32(v uint32) byte {
	v ^= v >> 16
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return byte(v & 1)
}
