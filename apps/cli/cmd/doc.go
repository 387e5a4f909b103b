// Package cmd implements the fetchling CLI commands using Cobra.
//
// Available commands:
//   - request: Send a request to a URL joined from a base and path segments
//   - tree: Print the resources a YAML resource tree resolves to
//   - call: Call a method on a resource of a YAML resource tree
//   - version: Show fetchling version information
//   - completion: Generate shell completion scripts
//
// Flags default from FETCHLING_* environment variables and a
// .fetchling.json config file.
package cmd
