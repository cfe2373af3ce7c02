// Package wlog is the process-wide structured logger.
//
// Every component logs through here rather than fmt.Printf so that the
// control server and the CSV pass log (internal/txlog) can share one
// sink and one timestamp format.
package wlog

import (
	"os"

	"github.com/charmbracelet/log"
)

var base = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "2006-01-02 15:04:05.000",
})

// SetLevel adjusts verbosity; called once from cmd/wsprrypi after flags parse.
func SetLevel(debug bool) {
	if debug {
		base.SetLevel(log.DebugLevel)
	} else {
		base.SetLevel(log.InfoLevel)
	}
}

// With returns a child logger tagged with a component name, e.g.
// wlog.With("scheduler").Info("armed", "freq_hz", f)
func With(component string) *log.Logger {
	return base.With("component", component)
}

func Debugf(format string, args ...any) { base.Debugf(format, args...) }
func Infof(format string, args ...any)  { base.Infof(format, args...) }
func Warnf(format string, args ...any)  { base.Warnf(format, args...) }
func Errorf(format string, args ...any) { base.Errorf(format, args...) }
