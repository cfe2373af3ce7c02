// Package txlog writes one CSV row per completed transmission pass to a
// daily-rotating log file, grounded on the teacher's log.go daily-names
// strategy (src/log.go's log_init/log_write), adapted from packet-decode
// fields to WSPR pass fields and from the teacher's bare *os.File to
// lestrrat-go/strftime-driven filename formatting.
package txlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
)

var log = wlog.With("txlog")

// dailyPattern names one file per UTC day, mirroring the teacher's
// g_daily_names convention (src/log.go).
const dailyPattern = "wspr-%Y%m%d.csv"

// Entry is one completed transmission pass (spec.md §4.10 "print_parameters"
// collaborator use; this is the persistent counterpart).
type Entry struct {
	Timestamp  time.Time
	Mode       string // "WSPR-2", "WSPR-15", or "TONE"
	Callsign   string
	Locator    string
	PowerDBm   int
	FreqHz     float64
	OffsetHz   float64
	PPM        float64
	Cancelled  bool
}

// Log appends rows to a daily-named CSV file in dir, opening a new file
// automatically when the UTC date rolls over (src/log.go's g_open_fname
// check, adapted to Go's os.File rather than C's FILE*).
type Log struct {
	mu       sync.Mutex
	dir      string
	file     *os.File
	writer   *csv.Writer
	openName string
}

// Open creates dir if it does not already exist, matching the teacher's
// "doesn't exist, try to create it, don't mkdir -p" behavior (src/log.go
// log_init).
func Open(dir string) (*Log, error) {
	if dir == "" {
		return &Log{}, nil // disabled, matches teacher's empty-path convention
	}
	stat, err := os.Stat(dir)
	switch {
	case err == nil && !stat.IsDir():
		return nil, fmt.Errorf("txlog: %s exists and is not a directory", dir)
	case err != nil:
		if mkErr := os.Mkdir(dir, 0755); mkErr != nil {
			return nil, fmt.Errorf("txlog: create %s: %w", dir, mkErr)
		}
		log.Info("created pass-log directory", "dir", dir)
	}
	return &Log{dir: dir}, nil
}

// Write appends one row, rotating to a new daily file if needed.
func (l *Log) Write(e Entry) error {
	if l.dir == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	name, err := strftime.Format(dailyPattern, e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("txlog: format daily filename: %w", err)
	}
	if name != l.openName {
		if l.file != nil {
			l.writer.Flush()
			l.file.Close()
		}
		path := filepath.Join(l.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("txlog: open %s: %w", path, err)
		}
		l.file = f
		l.writer = csv.NewWriter(f)
		l.openName = name
	}

	l.writer.Write([]string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Mode,
		e.Callsign,
		e.Locator,
		fmt.Sprintf("%d", e.PowerDBm),
		fmt.Sprintf("%.6f", e.FreqHz),
		fmt.Sprintf("%.2f", e.OffsetHz),
		fmt.Sprintf("%.3f", e.PPM),
		fmt.Sprintf("%t", e.Cancelled),
	})
	l.writer.Flush()
	return l.writer.Error()
}

// Close flushes and closes the currently-open file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	return l.file.Close()
}
