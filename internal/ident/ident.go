// Package ident derives stable numeric server identifiers from Komari UUIDs.
package ident

import "unicode/utf16"

// Hash converts a node UUID into a stable numeric identifier.
// It iterates the UTF-16 code units of the input and accumulates
// hash = unit + hash*31 using 32-bit signed wraparound arithmetic,
// then reinterprets the result as an unsigned 32-bit value.
//
// The same UUID always maps to the same identifier. Two distinct
// UUIDs may collide; no collision resolution is attempted because
// dashboards persist per-id session state keyed by exactly this
// mapping and changing it would orphan that state.
func Hash(uuid string) uint32 {
	var hash int32
	for _, unit := range utf16.Encode([]rune(uuid)) {
		hash = int32(unit) + ((hash << 5) - hash)
	}
	return uint32(hash)
}
