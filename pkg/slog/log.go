// Package slog is a simple leveled logger with colored level badges and code
// locations. Each package creates its own printer pair:
//
//	var log, chk = slog.New(os.Stderr)
//
// log.I.Ln prints at info level, chk.E(err) prints err at error level and
// reports whether err was non-nil.
package slog

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gookit/color"
)

const (
	Off = iota
	Fatal
	Error
	Warn
	Info
	Debug
	Trace
)

type (
	// Ln prints a list of values separated by spaces.
	Ln func(a ...interface{})
	// F prints with a format string.
	F func(format string, a ...interface{})
	// S spew-dumps its arguments, for inspecting structures.
	S func(a ...interface{})
	// Chk prints the error if there is one and returns true if it was
	// non-nil, so error handling can be done inline:
	//
	//	if chk.E(err) { return }
	Chk func(e error) bool
	// Err constructs an error via fmt.Errorf, prints it, and returns it.
	Err func(format string, a ...interface{}) error
)

// LevelPrinter is the set of printing primitives available at one log level.
type LevelPrinter struct {
	Ln
	F
	S
	Chk
	Err
}

// Log carries one LevelPrinter per level: Fatal, Error, Warn, Info, Debug,
// Trace.
type Log struct {
	F, E, W, I, D, T LevelPrinter
}

// Check is the Chk field of each of the levels of a Log, for terse inline
// error checks.
type Check struct {
	F, E, W, I, D, T Chk
}

// LevelSpec gives each level its name and badge color.
type LevelSpec struct {
	ID        int
	Name      string
	Colorizer func(a ...interface{}) string
}

var LevelSpecs = []LevelSpec{
	{Off, "   ", color.Bit24(0, 0, 0, false).Sprint},
	{Fatal, "FTL", color.Bit24(128, 0, 0, false).Sprint},
	{Error, "ERR", color.Bit24(255, 0, 0, false).Sprint},
	{Warn, "WRN", color.Bit24(0, 255, 0, false).Sprint},
	{Info, "INF", color.Bit24(255, 255, 0, false).Sprint},
	{Debug, "DBG", color.Bit24(0, 125, 255, false).Sprint},
	{Trace, "TRC", color.Bit24(125, 0, 255, false).Sprint},
}

var levelNames = []string{"off", "fatal", "error", "warn", "info", "debug",
	"trace"}

var currentLevel atomic.Int32

func init() {
	SetLogLevel(Info)
	if s := os.Getenv("LOGLEVEL"); s != "" {
		SetLogLevelString(s)
	}
}

// SetLogLevel sets the global level at and below which log prints appear.
func SetLogLevel(l int) { currentLevel.Store(int32(l)) }

// GetLogLevel returns the current global log level.
func GetLogLevel() int { return int(currentLevel.Load()) }

// SetLogLevelString sets the level from its lowercase name, as accepted on
// the command line. Unknown names leave the level unchanged.
func SetLogLevelString(s string) {
	for i := range levelNames {
		if strings.EqualFold(levelNames[i], strings.TrimSpace(s)) {
			SetLogLevel(i)
			return
		}
	}
}

func joinStrings(a ...interface{}) (s string) {
	for i := range a {
		s += fmt.Sprint(a[i])
		if i < len(a)-1 {
			s += " "
		}
	}
	return
}

func getLoc(skip int) string {
	_, file, line, _ := runtime.Caller(skip)
	return color.Bit24(0, 128, 255, false).Sprint(file, ":", line)
}

func timeStamp() string { return time.Now().Format("15:04:05.000000") }

func emit(w io.Writer, level int, text string) {
	fmt.Fprintf(w, "%s %s %s %s\n",
		timeStamp(),
		LevelSpecs[level].Colorizer(LevelSpecs[level].Name),
		text,
		getLoc(3),
	)
}

func getPrinter(level int, w io.Writer) LevelPrinter {
	enabled := func() bool { return int(currentLevel.Load()) >= level }
	return LevelPrinter{
		Ln: func(a ...interface{}) {
			if enabled() {
				emit(w, level, joinStrings(a...))
			}
		},
		F: func(format string, a ...interface{}) {
			if enabled() {
				emit(w, level, fmt.Sprintf(format, a...))
			}
		},
		S: func(a ...interface{}) {
			if enabled() {
				emit(w, level, spew.Sdump(a...))
			}
		},
		Chk: func(e error) bool {
			if e != nil {
				if enabled() {
					emit(w, level, e.Error())
				}
				return true
			}
			return false
		},
		Err: func(format string, a ...interface{}) error {
			if enabled() {
				emit(w, level, fmt.Sprintf(format, a...))
			}
			return fmt.Errorf(format, a...)
		},
	}
}

// New returns a Log and Check pair writing to w.
func New(w io.Writer) (l *Log, c *Check) {
	l = &Log{
		F: getPrinter(Fatal, w),
		E: getPrinter(Error, w),
		W: getPrinter(Warn, w),
		I: getPrinter(Info, w),
		D: getPrinter(Debug, w),
		T: getPrinter(Trace, w),
	}
	c = &Check{
		F: l.F.Chk,
		E: l.E.Chk,
		W: l.W.Chk,
		I: l.I.Chk,
		D: l.D.Chk,
		T: l.T.Chk,
	}
	return
}
