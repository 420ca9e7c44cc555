// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// Fingerprint derives the deterministic cache key for one logical request:
// SHA-256 over the RFC 8785 canonical JSON of (family, normalized subject,
// params). Canonicalization makes the digest independent of parameter key
// ordering.
func Fingerprint(family Family, subject string, params map[string]any) (string, error) {
	key := map[string]any{
		"family":  string(family),
		"subject": NormalizeSubject(subject),
		"params":  params,
	}

	raw, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint input: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// NormalizeSubject lowercases a subject and collapses internal whitespace,
// so "Acme  Corp" and "acme corp" fingerprint identically.
func NormalizeSubject(subject string) string {
	return strings.Join(strings.Fields(strings.ToLower(subject)), " ")
}
