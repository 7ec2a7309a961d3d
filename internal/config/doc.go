// Package config holds the converter's format-agnostic options model and
// the Loader interface a format-specific loader (see internal/hcl)
// implements to populate it.
package config
