package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Files are the dlib XML documents to convert, in order.
	Files []string
	// OptionsPath points at an optional HCL converter options file.
	OptionsPath string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Files) == 0 {
		return nil, errors.New("at least one input file is required")
	}
	return &cfg, nil
}
