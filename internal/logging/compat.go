package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// These ease migrations away from the standard 'log' package. Prefer the
// explicitly leveled API, e.g. log.Error().

func (log *Logger) Fatal(v ...interface{}) {
	log.Log(Error, 1, "%s", fmt.Sprint(v...))
	os.Exit(1)
}

func (log *Logger) Fatalf(format string, v ...interface{}) {
	log.Log(Error, 1, format, v...)
	os.Exit(1)
}

func (log *Logger) Printf(format string, v ...interface{}) {
	log.Log(Info, 1, format, v...)
}

// Writer adapts the logger to an io.Writer, one message per Write at the
// given level. Useful for http.Server.ErrorLog.
func (log *Logger) Writer(level Level) io.Writer {
	return &levelWriter{log, level}
}

type levelWriter struct {
	log   *Logger
	level Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	w.log.Log(w.level, 3, "%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}
