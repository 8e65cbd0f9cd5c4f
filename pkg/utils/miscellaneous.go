// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"strings"
	"unicode"
)

// MergeStringMaps combines the given string-keyed maps into a fresh map. Later maps win on
// key collisions; a nil result is only returned when every input is nil.
func MergeStringMaps[T any](oldMap map[string]T, newMaps ...map[string]T) map[string]T {
	var out map[string]T

	if oldMap != nil {
		out = make(map[string]T, len(oldMap))
	}
	for k, v := range oldMap {
		out[k] = v
	}

	for _, newMap := range newMaps {
		if newMap != nil && out == nil {
			out = make(map[string]T)
		}

		for k, v := range newMap {
			out[k] = v
		}
	}

	return out
}

// SanitizeIdentifier lowercases the given name and replaces every character that is neither a
// letter nor a digit with an underscore. It is used to derive database identifiers from
// user-supplied store names.
func SanitizeIdentifier(name string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(name) {
		if unicode.IsLower(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	return b.String()
}
