/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package openj9

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// generateNonce returns a cryptographically random 64-bit value
// rendered as lowercase hex, per spec.md §4.3 Phase D step 2. The
// nonce's secrecy comes entirely from replyInfo's 0600 permissions, so
// it must not be predictable.
func generateNonce() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", errors.Wrap(err, "openj9: generating nonce")
	}
	return hex.EncodeToString(b[:]), nil
}

// writeReplyInfo creates <vmDir>/replyInfo at mode 0600 containing
// "<nonce>\n<port>\n", the only secrecy boundary protecting the nonce.
func writeReplyInfo(vmDir, nonce string, port int) (string, error) {
	path := filepath.Join(vmDir, replyInfoFile)
	content := fmt.Sprintf("%s\n%d\n", nonce, port)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", err
	}
	return path, nil
}
