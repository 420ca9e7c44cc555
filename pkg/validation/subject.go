// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input sanitization for user-supplied
// values before they reach upstream queries or cache keys.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MaxSubjectLength caps a report subject after whitespace collapsing.
const MaxSubjectLength = 200

var (
	// ErrEmptySubject indicates a subject with no usable characters.
	ErrEmptySubject = errors.New("subject must not be empty")

	// ErrSubjectTooLong indicates a subject over MaxSubjectLength.
	ErrSubjectTooLong = errors.New("subject exceeds maximum length")

	// ErrSubjectControlChars indicates control characters in a subject.
	ErrSubjectControlChars = errors.New("subject contains control characters")
)

// SanitizeSubject trims and collapses whitespace in a report subject and
// rejects empty, oversized, or control-character input. The returned
// value is what should flow into queries and fingerprints.
func SanitizeSubject(subject string) (string, error) {
	for _, r := range subject {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return "", ErrSubjectControlChars
		}
	}

	cleaned := strings.Join(strings.Fields(subject), " ")
	if cleaned == "" {
		return "", ErrEmptySubject
	}
	if len(cleaned) > MaxSubjectLength {
		return "", ErrSubjectTooLong
	}
	return cleaned, nil
}
