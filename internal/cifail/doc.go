// Package cifail defines the failure records consumed by the remediation
// coordinator and the detector seam that produces them.
//
// A Record describes one detected CI failure: a stable pattern identifier
// naming the failure class, a closed Kind enumeration driving base severity,
// and the signals (blocking, recent frequency) used by the prioritizer.
// Records are immutable within a cycle and are never persisted themselves;
// only their remediation outcomes are.
//
// Detection is abstracted behind the Detector interface. Three
// implementations ship with the package:
//   - StaticDetector: a fixed slice, for one-shot runs and tests
//   - DirDetector: drains JSON failure drops from a directory
//   - WatchDetector: fsnotify-backed, wakes the coordinator when a CI
//     pipeline writes a new failure drop
//
// Validation fails closed: an unknown kind or an empty pattern is a
// ValidationError, never a silently defaulted severity.
package cifail
