/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package retry holds the attempts/pause value object used by the
// HotSpot signal-and-poll loops. It is deliberately not hidden state:
// callers can tune it per attach call.
package retry

import "time"

// Policy bounds a bounded-retry poll loop.
type Policy struct {
	// Attempts is the maximum number of polls before giving up.
	Attempts int

	// Pause is the delay between polls.
	Pause time.Duration
}

// Default is used when a caller supplies a zero Policy.
var Default = Policy{Attempts: 300, Pause: 20 * time.Millisecond}

// Sleep pauses for the policy's configured interval.
func (p Policy) Sleep() {
	time.Sleep(p.Pause)
}

// OrDefault returns p if it is usable, otherwise Default.
func (p Policy) OrDefault() Policy {
	if p.Attempts <= 0 || p.Pause <= 0 {
		return Default
	}
	return p
}
