package ppm

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Fixed is a Querier that always reports the same value, used when the
// operator disables NTP/chrony-based drift compensation (spec.md §6
// "use_ntp": false).
type Fixed float64

// Query always succeeds with the fixed value.
func (f Fixed) Query() (float64, error) { return float64(f), nil }

// Chronyc queries the PPM estimate by shelling out to `chronyc tracking`
// and parsing its "Frequency" line, grounded on the os/exec usage in
// the text-to-speech script runner (spec.md §4.8 "may parse `chronyc
// tracking` output").
type Chronyc struct {
	// Path overrides the chronyc binary location; empty uses $PATH.
	Path string
}

// frequencyLinePrefix is the label chronyc prints before the PPM value,
// e.g. "Frequency       : 3.256 ppm slow".
const frequencyLinePrefix = "Frequency"

// Query runs `chronyc tracking` and extracts the Frequency field in
// parts-per-million. A "slow" suffix is reported as a negative value,
// "fast" as positive, matching chronyc's own sign convention relative
// to the system clock (faster than reference is a positive ppm error).
func (c Chronyc) Query() (float64, error) {
	bin := c.Path
	if bin == "" {
		bin = "chronyc"
	}
	out, err := exec.Command(bin, "tracking").Output()
	if err != nil {
		return 0, fmt.Errorf("ppm: chronyc tracking failed: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), frequencyLinePrefix) {
			continue
		}
		fields := strings.SplitN(line, ":", 2)
		if len(fields) != 2 {
			continue
		}
		parts := strings.Fields(fields[1])
		if len(parts) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, fmt.Errorf("ppm: cannot parse chronyc frequency %q: %w", parts[0], err)
		}
		if len(parts) >= 3 {
			switch strings.ToLower(parts[2]) {
			case "fast":
				// already positive-convention
			case "slow":
				value = -value
			}
		}
		return value, nil
	}
	return 0, fmt.Errorf("ppm: no Frequency line in chronyc tracking output")
}
