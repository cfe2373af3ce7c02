package band

import (
	"fmt"

	"github.com/golang/geo/s2"
)

// ErrInvalidLocator is returned when a Maidenhead grid square is
// malformed or does not resolve to a valid latitude/longitude.
var ErrInvalidLocator = fmt.Errorf("band: locator must be 4 or 6 Maidenhead characters")

// LocatorToLatLng converts a 4- or 6-character Maidenhead grid square to
// its southwest-corner latitude/longitude, returning an s2.LatLng so
// callers can use it for great-circle sanity checks (SPEC_FULL.md
// domain-stack wiring for github.com/golang/geo).
func LocatorToLatLng(locator string) (s2.LatLng, error) {
	if len(locator) != 4 && len(locator) != 6 {
		return s2.LatLng{}, ErrInvalidLocator
	}
	upper := []byte(locator)
	for i := range upper {
		if upper[i] >= 'a' && upper[i] <= 'z' {
			upper[i] -= 'a' - 'A'
		}
	}
	if upper[0] < 'A' || upper[0] > 'R' || upper[1] < 'A' || upper[1] > 'R' ||
		upper[2] < '0' || upper[2] > '9' || upper[3] < '0' || upper[3] > '9' {
		return s2.LatLng{}, ErrInvalidLocator
	}

	lng := float64(upper[0]-'A')*20 - 180 + float64(upper[2]-'0')*2
	lat := float64(upper[1]-'A')*10 - 90 + float64(upper[3]-'0')*1

	if len(locator) == 6 {
		if upper[4] < 'A' || upper[4] > 'X' || upper[5] < 'A' || upper[5] > 'X' {
			return s2.LatLng{}, ErrInvalidLocator
		}
		lng += float64(upper[4]-'A') * (2.0 / 24.0)
		lat += float64(upper[5]-'A') * (1.0 / 24.0)
	}

	ll := s2.LatLngFromDegrees(lat, lng)
	if !ll.IsValid() {
		return s2.LatLng{}, ErrInvalidLocator
	}
	return ll, nil
}

// ValidateLocator reports whether locator decodes to a valid point on
// Earth, using LocatorToLatLng as a geometric sanity check beyond the
// character-range validation performed by the WSPR codec's own packer.
func ValidateLocator(locator string) error {
	_, err := LocatorToLatLng(locator)
	return err
}
