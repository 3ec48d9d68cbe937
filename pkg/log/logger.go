// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

var _ Logger = (*logger)(nil)

// logger implements the Logger interface. Unlike bee's original, this
// version renders directly to its sink rather than caching against a global
// logger registry; the sync engine creates few, long-lived loggers so the
// extra indirection isn't needed.
type logger struct {
	v      uint
	names  []string
	values []interface{}
	sink   io.Writer
	mu     *sync.Mutex

	verbosity *Level
}

// New creates a root Logger writing to w at the given verbosity.
func New(w io.Writer, verbosity Level) Logger {
	v := verbosity
	return &logger{
		sink:      w,
		mu:        &sync.Mutex{},
		verbosity: &v,
	}
}

// Noop returns a Logger that discards everything.
func Noop() Logger {
	return New(io.Discard, VerbosityNone)
}

func (l *logger) clone() *logger {
	c := *l
	c.names = append([]string(nil), l.names...)
	c.values = append([]interface{}(nil), l.values...)
	return &c
}

func (l *logger) V(v uint) Builder {
	c := l.clone()
	c.v += v
	return c
}

func (l *logger) WithName(name string) Builder {
	c := l.clone()
	c.names = append(c.names, name)
	return c
}

func (l *logger) WithValues(keysAndValues ...interface{}) Builder {
	c := l.clone()
	c.values = append(c.values, keysAndValues...)
	return c
}

func (l *logger) Build() Logger   { return l }
func (l *logger) Register() Logger { return l }

func (l *logger) name() string { return strings.Join(l.names, "/") }

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	if l.verbosity.get() >= VerbosityDebug+Level(l.v) {
		l.log(VerbosityDebug, nil, msg, keysAndValues...)
	}
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	if l.verbosity.get() >= VerbosityInfo {
		l.log(VerbosityInfo, nil, msg, keysAndValues...)
	}
}

func (l *logger) Warning(msg string, keysAndValues ...interface{}) {
	if l.verbosity.get() >= VerbosityWarning {
		l.log(VerbosityWarning, nil, msg, keysAndValues...)
	}
}

func (l *logger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.verbosity.get() >= VerbosityError {
		l.log(VerbosityError, err, msg, keysAndValues...)
	}
}

func (l *logger) log(vl Level, err error, msg string, keysAndValues ...interface{}) {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, " level=%s", vl)
	if n := l.name(); n != "" {
		fmt.Fprintf(&b, " logger=%s", n)
	}
	fmt.Fprintf(&b, " msg=%q", msg)
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	for i := 0; i+1 < len(l.values); i += 2 {
		fmt.Fprintf(&b, " %v=%v", l.values[i], l.values[i+1])
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	b.WriteByte('\n')

	var merr *multierror.Error
	l.mu.Lock()
	_, werr := io.WriteString(l.sink, b.String())
	l.mu.Unlock()
	if werr != nil {
		merr = multierror.Append(merr, fmt.Errorf("log: failed to write message: %w", werr))
	}
	if merr.ErrorOrNil() != nil {
		fmt.Fprintln(os.Stderr, merr)
	}
}
