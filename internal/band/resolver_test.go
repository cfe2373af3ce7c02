package band

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Tokens(t *testing.T) {
	freq, is15, err := Resolve("20m", true)
	require.NoError(t, err)
	assert.Equal(t, 14097100.0, freq)
	assert.False(t, is15)

	freq, is15, err = Resolve("MF-15", true)
	require.NoError(t, err)
	assert.Equal(t, 475812.5, freq)
	assert.True(t, is15)
}

func TestResolve_NumericWithUnits(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"7.040 MHz", 7040000},
		{"10 GHz", 10000000000},
		{"475.812 kHz", 475812},
		{"14097100", 14097100},
		{"14097100 Hz", 14097100},
	}
	for _, c := range cases {
		freq, _, err := Resolve(c.in, false)
		require.NoError(t, err, c.in)
		assert.InDelta(t, c.want, freq, 1, c.in)
	}
}

func TestResolve_ZeroSentinel(t *testing.T) {
	freq, is15, err := Resolve("0", true)
	require.NoError(t, err)
	assert.Zero(t, freq)
	assert.False(t, is15)
}

func TestResolve_InvalidToken(t *testing.T) {
	_, _, err := Resolve("not-a-band", true)
	assert.ErrorIs(t, err, InvalidBand)
}

func TestResolve_OutOfBandNumericRejectedWhenValidating(t *testing.T) {
	_, _, err := Resolve("123456789", true)
	assert.ErrorIs(t, err, InvalidFrequency)
}

func TestResolve_OutOfBandNumericAllowedWithoutValidation(t *testing.T) {
	freq, _, err := Resolve("123456789", false)
	require.NoError(t, err)
	assert.Equal(t, 123456789.0, freq)
}

func TestValidateFrequency_KnownBands(t *testing.T) {
	name, err := ValidateFrequency(14097100)
	require.NoError(t, err)
	assert.Equal(t, "20M", name)

	name, err = ValidateFrequency(50294500)
	require.NoError(t, err)
	assert.Equal(t, "6M", name)
}

func TestFreqDisplayString(t *testing.T) {
	assert.Equal(t, "14.097100 MHz", FreqDisplayString(14097100))
	assert.Equal(t, "475.812 kHz", FreqDisplayString(475812.5))
	assert.Equal(t, "10.000000000 GHz", FreqDisplayString(1e10))
}

func TestLocatorToLatLng_Roundish(t *testing.T) {
	ll, err := LocatorToLatLng("FN42")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, ll.Lat.Degrees(), 10)
	assert.InDelta(t, -71.0, ll.Lng.Degrees(), 10)
}

func TestLocatorToLatLng_Invalid(t *testing.T) {
	_, err := LocatorToLatLng("XX")
	assert.ErrorIs(t, err, ErrInvalidLocator)
}
