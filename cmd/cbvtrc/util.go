package main

import (
	"log"
)

// logWriter adapts a logger to an io.Writer, one log line per write.
type logWriter struct{ *log.Logger }

func (w *logWriter) Write(p []byte) (int, error) {
	w.Logger.Print(string(p))
	return len(p), nil
}
