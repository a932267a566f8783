/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package attachlog provides the attach core's default diagnostic
// sink: a logrus.Logger wrapped so it satisfies the small Printf-style
// Logger interface callers may already be supplying, while internal
// callers get structured fields (pid, op, phase) instead of formatted
// strings.
package attachlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewDefault returns the logrus.Logger backing attachcore's default
// Logger, writing leveled text to stderr the way lazydocker's root
// logger is constructed.
func NewDefault() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Entry starts a structured log line scoped to one attach attempt.
func Entry(log *logrus.Logger, op string, pid int) *logrus.Entry {
	return log.WithFields(logrus.Fields{"op": op, "pid": pid})
}
