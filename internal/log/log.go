// Copyright 2024 the amd-apcb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log provides the small logging seam used by the apcb package for
// non-fatal diagnostics. The one diagnostic apcb logs is a checksum
// mismatch that Load tolerates because LoadOptions.CheckChecksum is false.
package log

import (
	"log"
	"os"
)

// Logger describes a logger usable by the apcb package.
type Logger interface {
	// Warnf logs a warning message.
	Warnf(format string, args ...interface{})

	// Errorf logs an error message.
	Errorf(format string, args ...interface{})
}

// DefaultLogger is the logger used by default everywhere within apcb.
var DefaultLogger Logger

func init() {
	DefaultLogger = logWrapper{Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

type logWrapper struct {
	Logger *log.Logger
}

// Warnf implements Logger.
func (logger logWrapper) Warnf(format string, args ...interface{}) {
	logger.Logger.Printf("[apcb][WARN] "+format, args...)
}

// Errorf implements Logger.
func (logger logWrapper) Errorf(format string, args ...interface{}) {
	logger.Logger.Printf("[apcb][ERROR] "+format, args...)
}

// Warnf logs a warning message to DefaultLogger.
func Warnf(format string, args ...interface{}) {
	DefaultLogger.Warnf(format, args...)
}

// Errorf logs an error message to DefaultLogger.
func Errorf(format string, args ...interface{}) {
	DefaultLogger.Errorf(format, args...)
}
