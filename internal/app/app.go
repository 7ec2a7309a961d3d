package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/E452003/dlib/internal/caffe"
	"github.com/E452003/dlib/internal/config"
	"github.com/E452003/dlib/internal/ctxlog"
	"github.com/E452003/dlib/internal/graph"
	"github.com/E452003/dlib/internal/netxml"
)

// App encapsulates the converter's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	opts   *config.Options
}

// NewApp is the constructor for the main application. It configures an
// isolated logger and loads the converter options up front so a bad options
// file fails before any input is touched.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	opts, err := loader.Load(ctx, cfg.OptionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load converter options: %w", err)
	}
	logger.Debug("Converter options ready.")

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		opts:   opts,
	}, nil
}

// Run converts every configured input file in order. The loop is not
// individually recovered: the first failing file aborts the whole run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	for _, path := range a.cfg.Files {
		if err := a.ConvertFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// ConvertFile converts one dlib XML document into its generated Python
// file. The output is buffered in memory first, so a failing conversion
// writes nothing to disk.
func (a *App) ConvertFile(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)

	outName := caffe.OutputName(path, a.opts.OutputSuffix)
	logger.Info("Writing model.", "input", path, "output", outName)

	layers, err := netxml.ParseFile(ctx, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	net := graph.New(layers)

	var buf bytes.Buffer
	caffeOpts := caffe.Options{
		DefaultInputSize: a.opts.DefaultInputSize,
		Precision:        a.opts.Precision,
	}
	if err := caffe.Convert(ctx, net, caffeOpts, &buf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := os.WriteFile(outName, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outName, err)
	}
	return nil
}
