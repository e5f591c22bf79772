// Package gologger hands out component scoped go-logger loggers for the
// checkout runtime and bridges them into go-job.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// RootName prefixes every component logger name.
const RootName = "checkout"

// Loggers resolves named loggers once a provider or a base logger is known.
// A provider wins over the base logger; with neither, loggers are no-ops.
type Loggers struct {
	provider glog.LoggerProvider
	base     glog.Logger
}

func New(provider glog.LoggerProvider, logger glog.Logger) *Loggers {
	resolvedProvider, resolvedLogger := glog.Resolve(RootName, provider, logger)
	base := logger
	if base == nil {
		base = resolvedLogger
	}
	if base == nil {
		base = glog.Nop()
	}
	return &Loggers{provider: resolvedProvider, base: base}
}

// Name returns the logger name used for component, e.g. "checkout.jobs".
func Name(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" {
		return RootName
	}
	return RootName + "." + component
}

// For returns the logger for component.
func (l *Loggers) For(component string) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	if l.provider != nil {
		if named := l.provider.GetLogger(Name(component)); named != nil {
			return named
		}
	}
	return l.base
}

// Job adapts the component logger to the go-job logger contract.
func (l *Loggers) Job(component string) job.Logger {
	return job.GoLogger(l.For(component))
}

// JobProvider exposes the resolved provider to go-job, or nil when only a
// base logger was configured.
func (l *Loggers) JobProvider() job.LoggerProvider {
	if l == nil || l.provider == nil {
		return nil
	}
	return job.GoLoggerProvider(l.provider)
}
