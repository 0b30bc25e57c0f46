// Package subtitle parses, repairs, shifts, and merges SRT subtitle text
// returned by the translation provider.
//
// Everything here is pure: functions never fail and never touch shared state.
// Malformed provider output is repaired on a best-effort basis (see Repair),
// per-batch fragments are classified as relative or absolute, shifted onto the
// video timeline, and merged into one sorted, deduplicated track whose
// serialization is byte-stable (see Format).
package subtitle
