package wspr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncode_CanonicalFrame(t *testing.T) {
	symbols, err := Encode("K1ABC", "FN42", 10)
	require.NoError(t, err)
	assert.Len(t, symbols, NumSymbols)

	for _, s := range symbols {
		assert.LessOrEqual(t, s, byte(3))
	}
}

func TestEncode_RejectsCompoundCallsign(t *testing.T) {
	_, err := Encode("K1ABC/P", "FN42", 10)
	assert.ErrorIs(t, err, ErrCompoundCallsign)
}

func TestEncode_RejectsBadLocator(t *testing.T) {
	_, err := Encode("K1ABC", "XX", 10)
	assert.ErrorIs(t, err, ErrInvalidLocator)
}

func TestEncode_SixCharLocatorTruncated(t *testing.T) {
	short, err := Encode("K1ABC", "FN42", 10)
	require.NoError(t, err)
	long, err := Encode("K1ABC", "FN42xx", 10)
	require.NoError(t, err)
	assert.Equal(t, short, long)
}

func TestQuantizePower_BoundaryClamp(t *testing.T) {
	assert.Equal(t, quantizePower(0), quantizePower(-1))
	assert.Equal(t, quantizePower(60), quantizePower(61))
}

func TestQuantizePower_Scenario(t *testing.T) {
	assert.Equal(t, 23, quantizePower(23))
	assert.Equal(t, 10, quantizePower(11))
}

func TestInterleave_IsBijection(t *testing.T) {
	seen := make(map[int]bool, NumSymbols)
	for _, dst := range interleave {
		require.False(t, seen[dst], "destination index %d used twice", dst)
		require.GreaterOrEqual(t, dst, 0)
		require.Less(t, dst, NumSymbols)
		seen[dst] = true
	}
	assert.Len(t, seen, NumSymbols)
}

func TestEncode_SymbolsAlwaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		power := rapid.IntRange(-5, 70).Draw(rt, "power")
		call := "K" + string(rune('1'+rapid.IntRange(0, 8).Draw(rt, "digit"))) + "ABC"
		symbols, err := Encode(call, "FN42", power)
		require.NoError(rt, err)
		for _, s := range symbols {
			if s > 3 {
				rt.Fatalf("symbol out of range: %d", s)
			}
		}
	})
}
