/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package retry

import (
	"testing"
	"time"
)

func TestPolicyOrDefault(t *testing.T) {
	cases := []struct {
		name string
		in   Policy
		want Policy
	}{
		{"zero value", Policy{}, Default},
		{"negative attempts", Policy{Attempts: -1, Pause: time.Millisecond}, Default},
		{"zero pause", Policy{Attempts: 5, Pause: 0}, Default},
		{"usable", Policy{Attempts: 5, Pause: time.Millisecond}, Policy{Attempts: 5, Pause: time.Millisecond}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.in.OrDefault(); got != c.want {
				t.Errorf("OrDefault() = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestPolicySleep(t *testing.T) {
	p := Policy{Attempts: 1, Pause: 5 * time.Millisecond}
	start := time.Now()
	p.Sleep()
	if elapsed := time.Since(start); elapsed < p.Pause {
		t.Errorf("Sleep() returned after %v, want at least %v", elapsed, p.Pause)
	}
}
