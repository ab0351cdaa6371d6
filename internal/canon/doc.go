// Package canon produces canonical JSON and content-addressed hashes.
//
// Canonical JSON follows RFC 8785 for the value space flint needs:
// objects with keys sorted by UTF-16 code units, arrays, strings
// (NFC normalized, minimal escaping), integers and booleans. Floats and
// null are rejected so that two equal values always hash identically.
//
// Compiled schedules and run snapshots are hashed with Hash, which
// prefixes a versioned domain string to keep hashes of different
// record kinds from colliding.
package canon
