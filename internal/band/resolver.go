// Package band resolves WSPR band tokens and raw frequency strings to a
// center frequency in Hz, and validates results against the amateur
// allocation table (spec.md §4.7, Component C7).
//
// Grounded on original_source/src/wspr_band_lookup.cpp's WSPRBandLookup
// class: the token table, the unit-suffixed numeric parser, and the
// validHamFrequencies range table are transcribed from it directly.
package band

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// InvalidFrequency is returned when a numeric input does not fall within
// any known amateur allocation (spec.md §4.7 "Validation").
var InvalidFrequency = errors.New("band: frequency is not within a recognized amateur allocation")

// InvalidBand is returned when a string input is neither a known band
// token nor a parseable numeric frequency.
var InvalidBand = errors.New("band: unrecognized band token or frequency string")

// tokenEntry pairs a WSPR center frequency with its WSPR-15 flag.
type tokenEntry struct {
	freq     float64
	wspr15   bool
}

// tokens is the canonical WSPR band-token table (spec.md §4.7 "Token
// table"), transcribed from wspr_band_lookup.cpp's wsprFrequencies map.
var tokens = map[string]tokenEntry{
	"lf":     {137500, false},
	"lf-15":  {137612.5, true},
	"mf":     {475700, false},
	"mf-15":  {475812.5, true},
	"160m":   {1838100, false},
	"160m-15": {1838212.5, true},
	"80m":  {3570100, false},
	"60m":  {5288700, false},
	"40m":  {7040100, false},
	"30m":  {10140200, false},
	"20m":  {14097100, false},
	"17m":  {18106100, false},
	"15m":  {21096100, false},
	"12m":  {24926100, false},
	"10m":  {28126100, false},
	"6m":   {50294500, false},
	"4m":   {70092500, false},
	"2m":   {144490500, false},
}

// allocation is one row of the amateur-band validation table.
type allocation struct {
	lo, hi float64
	name   string
}

// allocations is the 2200M-through-1mm amateur band table (spec.md §4.7
// "2200M through 1 mm"), transcribed from wspr_band_lookup.cpp's
// validHamFrequencies.
var allocations = []allocation{
	{135700, 137800, "2200M"},
	{472000, 479000, "630M"},
	{1800000, 2000000, "160M"},
	{3500000, 4000000, "80M"},
	{5332000, 5405000, "60M (Channelized)"},
	{7000000, 7300000, "40M"},
	{10100000, 10150000, "30M"},
	{14000000, 14350000, "20M"},
	{18068000, 18168000, "17M"},
	{21000000, 21450000, "15M"},
	{24890000, 24990000, "12M"},
	{28000000, 29700000, "10M"},
	{50000000, 54000000, "6M"},
	{144000000, 148000000, "2M"},
	{222000000, 225000000, "1.25M"},
	{420000000, 450000000, "70CM"},
	{902000000, 928000000, "33CM"},
	{1240000000, 1300000000, "23CM"},
	{2300000000, 2450000000, "13CM"},
	{3300000000, 3500000000, "9CM"},
	{5650000000, 5925000000, "6CM"},
	{10000000000, 10500000000, "3CM"},
	{24000000000, 24250000000, "1.2CM"},
	{47000000000, 47200000000, "6MM"},
	{75500000000, 81000000000, "4MM"},
	{122250000000, 123000000000, "2.5MM"},
	{134000000000, 141000000000, "2MM"},
	{241000000000, 250000000000, "1MM"},
}

var numericPattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?)\s*(GHz|MHz|kHz|Hz)?\s*$`)

// parseNumeric parses a bare frequency string with an optional unit
// suffix; a missing unit defaults to Hz (spec.md §4.7 "Numeric parsing").
func parseNumeric(s string) (float64, bool) {
	m := numericPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "ghz":
		value *= 1e9
	case "mhz":
		value *= 1e6
	case "khz":
		value *= 1e3
	}
	return value, true
}

// ValidateFrequency maps frequencyHz to its amateur band name, or
// InvalidFrequency if it falls outside every known allocation (spec.md
// §4.7 "Validation").
func ValidateFrequency(frequencyHz float64) (string, error) {
	for _, a := range allocations {
		if frequencyHz >= a.lo && frequencyHz <= a.hi {
			return a.name, nil
		}
	}
	return "", InvalidFrequency
}

// Resolve parses input as either a WSPR band token or a numeric
// frequency string and returns (frequency_hz, is_wspr15) (spec.md §4.7).
// A zero-valued frequency is passed through unvalidated as the
// scheduler-level "skip this slot" sentinel (spec.md §4.7 "Returns").
//
// When validate is true, a numeric (non-token) input must also fall
// within a known amateur allocation.
func Resolve(input string, validate bool) (float64, bool, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "0" {
		return 0, false, nil
	}

	if entry, ok := tokens[strings.ToLower(trimmed)]; ok {
		return entry.freq, entry.wspr15, nil
	}

	freq, ok := parseNumeric(trimmed)
	if !ok {
		return 0, false, fmt.Errorf("%w: %q", InvalidBand, input)
	}
	if validate && freq != 0 {
		if _, err := ValidateFrequency(freq); err != nil {
			return 0, false, err
		}
	}
	return freq, false, nil
}

// FreqDisplayString renders frequencyHz using the appropriate unit and
// precision (spec.md §4.7 collaborator use, wspr_band_lookup.cpp's
// freq_display_string): GHz at 9 decimals, MHz at 6, kHz at 3, Hz with
// none.
func FreqDisplayString(frequencyHz float64) string {
	switch {
	case frequencyHz >= 1e9:
		return fmt.Sprintf("%.9f GHz", frequencyHz/1e9)
	case frequencyHz >= 1e6:
		return fmt.Sprintf("%.6f MHz", frequencyHz/1e6)
	case frequencyHz >= 1e3:
		return fmt.Sprintf("%.3f kHz", frequencyHz/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", frequencyHz)
	}
}
