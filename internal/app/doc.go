// Package app wires the converter together: logger construction, options
// loading, and the per-file conversion loop with its fail-fast error
// semantics.
package app
