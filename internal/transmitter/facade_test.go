package transmitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetup_RejectsWSPRWithoutCallsign(t *testing.T) {
	f := New()
	err := f.Setup(Params{TargetFreqHz: 14097100})
	assert.Error(t, err)
}

func TestPrintParameters_ToneMode(t *testing.T) {
	f := New()
	f.params = Params{TargetFreqHz: 14097100, IsTone: true}
	assert.Equal(t, "tone: freq=14097100.000000 Hz offset=0.00 Hz", f.PrintParameters())
}

func TestIsStopping_FalseBeforeStart(t *testing.T) {
	f := New()
	assert.False(t, f.IsStopping())
}

func TestCancel_NoopWithoutScheduler(t *testing.T) {
	f := New()
	assert.NotPanics(t, func() { f.Cancel() })
}
