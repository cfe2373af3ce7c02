package dmaring

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbussy/WsprryPi-sub001/internal/mailbox"
)

func newTestTable() *TuningTable {
	page := mailbox.Page{Bus: 0x1000, Virt: make([]byte, mailbox.PageSize)}
	return NewTuningTable(page)
}

func TestBuild_NormalCaseDoesNotNudge(t *testing.T) {
	table := newTestTable()
	result, err := table.Build(14097100, 500e6, 0, ToneSpacing)
	require.NoError(t, err)
	assert.False(t, result.Nudged)
	assert.Equal(t, 14097100.0, result.CenterActual)
}

func TestBuild_InvariantHoldsAcrossAllFourTones(t *testing.T) {
	table := newTestTable()
	_, err := table.Build(14097100, 500e6, 1.5, ToneSpacing)
	require.NoError(t, err)

	for k := 0; k < 4; k++ {
		lo := binary.LittleEndian.Uint32(table.page.Virt[(2*k)*4 : (2*k)*4+4])
		hi := binary.LittleEndian.Uint32(table.page.Virt[(2*k+1)*4 : (2*k+1)*4+4])
		assert.Equal(t, lo&^0xFFF, hi&^0xFFF, "tone %d integer divisor mismatch", k)
	}
}

func TestBuild_FillerSlotsPopulated(t *testing.T) {
	table := newTestTable()
	_, err := table.Build(14097100, 500e6, 0, ToneSpacing)
	require.NoError(t, err)

	word := binary.LittleEndian.Uint32(table.page.Virt[8*4 : 8*4+4])
	assert.Equal(t, uint32(tuningWordPassword), word&0xFF000000)
}

func TestToneSlot(t *testing.T) {
	lo, hi := ToneSlot(2)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 5, hi)
}

func TestF0Ratio_WithinUnitIntervalAndBracketsTarget(t *testing.T) {
	table := newTestTable()
	_, err := table.Build(14097100, 500e6, 1.5, ToneSpacing)
	require.NoError(t, err)

	for k := 0; k < 4; k++ {
		ratio := table.F0Ratio(k)
		assert.GreaterOrEqual(t, ratio, 0.0)
		assert.LessOrEqual(t, ratio, 1.0)

		// Dithering f0/f1 at this ratio should average back onto the
		// tone's exact target frequency.
		blended := ratio*table.f0Freq[k] + (1-ratio)*table.f1Freq[k]
		assert.InDelta(t, table.toneFreq[k], blended, 1e-6)
	}
}
