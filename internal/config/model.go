package config

import "context"

// Options is the format-agnostic converter configuration model.
type Options struct {
	// DefaultInputSize is the nr/nc fallback emitted (with a warning
	// comment) when the source network didn't commit to an input size.
	DefaultInputSize int
	// Precision is the number of significant digits used for every number
	// in the generated Python.
	Precision int
	// OutputSuffix is appended to the input filename (truncated at its
	// first period) to form the output filename.
	OutputSuffix string
}

// Default returns the options used when no options file is given.
func Default() *Options {
	return &Options{
		DefaultInputSize: 28,
		Precision:        9,
		OutputSuffix:     "_dlib_to_caffe_model.py",
	}
}

// Loader loads converter options from a file. An empty path yields the
// defaults.
type Loader interface {
	Load(ctx context.Context, path string) (*Options, error)
}
