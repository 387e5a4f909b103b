// Package output provides formatters for displaying responses and resource trees.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output, written once on Flush
package output
