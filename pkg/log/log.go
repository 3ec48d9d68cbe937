// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log provides a small structured, leveled logger used across the
// sync engine. It is adapted from bee's pkg/log: a tree-named logger built
// with WithName/WithValues and a V(n) debug-verbosity builder, rendering
// key/value pairs rather than a pre-formatted string.
package log

import (
	"strconv"
	"sync/atomic"
)

// Level specifies a level of verbosity for a logger. It is treated as a
// sync/atomic int32 so verbosity can be changed at runtime from any
// goroutine without additional locking.
type Level int32

func (l *Level) get() Level { return Level(atomic.LoadInt32((*int32)(l))) }
func (l *Level) set(v Level) { atomic.StoreInt32((*int32)(l), int32(v)) }

func (l Level) String() string {
	switch l {
	case VerbosityNone:
		return "none"
	case VerbosityError:
		return "error"
	case VerbosityWarning:
		return "warning"
	case VerbosityInfo:
		return "info"
	case VerbosityDebug:
		return "debug"
	case VerbosityAll:
		return "all"
	}
	return strconv.FormatInt(int64(l), 10)
}

const (
	VerbosityNone = Level(iota - 4)
	VerbosityError
	VerbosityWarning
	VerbosityInfo
	VerbosityDebug
	VerbosityAll = Level(1<<31 - 1)
)

// ParseVerbosityLevel parses a verbosity level from its string form.
func ParseVerbosityLevel(s string) (Level, error) {
	switch s {
	case "none":
		return VerbosityNone, nil
	case "error":
		return VerbosityError, nil
	case "warning":
		return VerbosityWarning, nil
	case "info":
		return VerbosityInfo, nil
	case "debug":
		return VerbosityDebug, nil
	case "all":
		return VerbosityAll, nil
	}
	i, err := strconv.ParseInt(s, 10, 32)
	return Level(i), err
}

// Builder modifies a Logger before it is materialised via Build/Register.
type Builder interface {
	V(v uint) Builder
	WithName(name string) Builder
	WithValues(keysAndValues ...interface{}) Builder
	Build() Logger
	Register() Logger
}

// Logger is the logging interface used throughout the sync engine.
type Logger interface {
	Builder

	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warning(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}
