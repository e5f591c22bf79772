package main

import (
	"io"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// newLoggerProvider builds the root JSON logger. Loggers handed out by name
// carry a "logger" attribute and share the root level.
func newLoggerProvider(w io.Writer, level string) *glog.BaseLogger {
	level = strings.TrimSpace(level)
	if level == "" {
		level = glog.DefaultLogLevel
	}
	return glog.NewLogger(
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
		glog.WithWriter(w),
	)
}
