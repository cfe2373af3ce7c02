package wsprconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_ValidWSPR(t *testing.T) {
	path := writeTemp(t, `
mode: wspr
callsign: K1ABC
grid_square: FN42
power_dbm: 10
frequencies: ["20m"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "K1ABC", cfg.Callsign)
	assert.Equal(t, 7, cfg.PowerLevel) // default carried through
}

func TestLoad_MissingCallsignRejected(t *testing.T) {
	path := writeTemp(t, `
mode: wspr
grid_square: FN42
frequencies: ["20m"]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ToneModeSkipsCallsignCheck(t *testing.T) {
	path := writeTemp(t, `mode: tone`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tone", cfg.Mode)
}

func TestValidate_RejectsBadPowerLevel(t *testing.T) {
	cfg := Default()
	cfg.Mode = "tone"
	cfg.PowerLevel = 9
	assert.Error(t, cfg.Validate())
}
