package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/E452003/dlib/internal/config"
	"github.com/E452003/dlib/internal/ctxlog"
)

// hclOptionsFile is the top-level structure of an options file for decoding.
type hclOptionsFile struct {
	Converter *hclConverterBlock `hcl:"converter,block"`
}

// hclConverterBlock keeps attributes as raw expressions so absent ones can
// fall back to the model's defaults.
type hclConverterBlock struct {
	DefaultInputSize hcl.Expression `hcl:"default_input_size,optional"`
	Precision        hcl.Expression `hcl:"precision,optional"`
	OutputSuffix     hcl.Expression `hcl:"output_suffix,optional"`
}

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL options loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses an HCL options file into the config model. An empty path, a
// file without a converter block, and absent attributes all fall back to the
// defaults.
func (l *Loader) Load(ctx context.Context, path string) (*config.Options, error) {
	opts := config.Default()
	if path == "" {
		return opts, nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading converter options.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, diags)
	}

	var parsed hclOptionsFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode options file %s: %w", path, diags)
	}
	if parsed.Converter == nil {
		return opts, nil
	}

	if err := decodeAttr(parsed.Converter.DefaultInputSize, &opts.DefaultInputSize); err != nil {
		return nil, fmt.Errorf("bad default_input_size: %w", err)
	}
	if err := decodeAttr(parsed.Converter.Precision, &opts.Precision); err != nil {
		return nil, fmt.Errorf("bad precision: %w", err)
	}
	if err := decodeAttr(parsed.Converter.OutputSuffix, &opts.OutputSuffix); err != nil {
		return nil, fmt.Errorf("bad output_suffix: %w", err)
	}

	logger.Debug("Converter options loaded.",
		"default_input_size", opts.DefaultInputSize,
		"precision", opts.Precision,
		"output_suffix", opts.OutputSuffix,
	)
	return opts, nil
}

// decodeAttr evaluates an attribute expression and converts it into the
// target Go value. A nil or null expression leaves the target's default
// untouched.
func decodeAttr(expr hcl.Expression, target any) error {
	if expr == nil {
		return nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	if val.IsNull() {
		return nil
	}
	impliedType, err := gocty.ImpliedType(target)
	if err != nil {
		return err
	}
	converted, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to %s: %w",
			val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, target)
}
