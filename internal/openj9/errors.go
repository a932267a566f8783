/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package openj9

import "errors"

// Sentinel errors the root package maps onto its own Kind taxonomy via
// errors.Is.
var (
	ErrTargetNotAdvertised = errors.New("openj9: target pid not found in advertisement directory")
	ErrNonceMismatch       = errors.New("openj9: peer connected without the expected nonce")
	ErrAgentRejected       = errors.New("openj9: target returned ATTACH_ERR")
	ErrUnexpectedResponse  = errors.New("openj9: response matched no known prefix")
)
