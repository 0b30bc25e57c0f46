// Package preflight provides readiness checks for the paths, binaries, and
// external services subtrans depends on.
//
// These checks run in two contexts:
//   - The daemon runs LocalChecks at startup and logs every failure, so a
//     missing ffprobe or unwritable data directory shows up before the first
//     job does.
//   - The CLI "subtrans doctor" command runs RunAll, which adds the network
//     checks against the translation provider and, when enabled, the broker.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
