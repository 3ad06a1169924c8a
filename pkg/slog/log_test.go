package slog_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracktide/trackstr/pkg/slog"
)

func TestLevelGating(t *testing.T) {
	defer slog.SetLogLevel(slog.Info)
	var buf bytes.Buffer
	log, chk := slog.New(&buf)
	slog.SetLogLevel(slog.Warn)
	log.I.Ln("should not appear")
	log.D.F("should not appear %d", 1)
	assert.Equal(t, 0, buf.Len())
	log.W.Ln("warning appears")
	assert.Contains(t, buf.String(), "warning appears")
	buf.Reset()
	slog.SetLogLevel(slog.Fatal)
	assert.True(t, chk.E(errors.New("some error")))
	// below the gate the error still reports true, just silently
	assert.Equal(t, 0, buf.Len())
	assert.False(t, chk.E(nil))
}

func TestErrReturnsError(t *testing.T) {
	var buf bytes.Buffer
	log, _ := slog.New(&buf)
	err := log.E.Err("failed with %d", 42)
	assert.Error(t, err)
	assert.Equal(t, "failed with 42", err.Error())
	assert.Contains(t, buf.String(), "failed with 42")
}

func TestSetLogLevelString(t *testing.T) {
	defer slog.SetLogLevel(slog.Info)
	for i, name := range []string{"off", "fatal", "error", "warn", "info",
		"debug", "trace"} {
		slog.SetLogLevelString(name)
		assert.Equal(t, i, slog.GetLogLevel())
	}
	slog.SetLogLevelString("bogus")
	assert.Equal(t, slog.Trace, slog.GetLogLevel())
}

func TestAllPrintersWrite(t *testing.T) {
	defer slog.SetLogLevel(slog.Info)
	slog.SetLogLevel(slog.Trace)
	var buf bytes.Buffer
	log, _ := slog.New(&buf)
	log.T.Ln("trace")
	log.D.Ln("debug")
	log.I.Ln("info")
	log.W.Ln("warn")
	log.E.F("error %s", "formatted")
	log.F.Ln("fatal")
	out := buf.String()
	for _, want := range []string{"trace", "debug", "info", "warn",
		"error formatted", "fatal"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 6, strings.Count(out, "\n"))
}
