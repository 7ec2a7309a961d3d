package caffe

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/E452003/dlib/internal/ctxlog"
	"github.com/E452003/dlib/internal/graph"
	"github.com/E452003/dlib/internal/layer"
)

// Options controls the generated Python output.
type Options struct {
	// DefaultInputSize is the nr/nc fallback used when the source network
	// didn't commit to a specific input size.
	DefaultInputSize int
	// Precision is the number of significant digits for emitted numbers.
	Precision int
}

// OutputName derives the generated file's name from the input path: strip
// everything after the first period, append the suffix.
func OutputName(path, suffix string) string {
	if i := strings.Index(path, "."); i >= 0 {
		path = path[:i]
	}
	return path + suffix
}

// emitter sequences the translated declarations and relayout blocks into the
// generated Python source. Write errors stick in err so the translation
// logic stays uncluttered.
type emitter struct {
	net  *graph.Network
	opts Options
	w    io.Writer
	err  error
}

func (e *emitter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// num formats a float the way the generated Python expects: shortest form at
// the configured number of significant digits.
func (e *emitter) num(v float64) string {
	return strconv.FormatFloat(v, 'g', e.opts.Precision, 64)
}

// npArray renders a flat block as a numpy literal.
func (e *emitter) npArray(vals []float64) string {
	var b strings.Builder
	b.WriteString("np.array([")
	for _, v := range vals {
		b.WriteString(e.num(v))
		b.WriteByte(',')
	}
	b.WriteString("], dtype='float32')")
	return b.String()
}

// Convert writes the full generated Python program for net to w: the input
// dimension constants, make_netspec(), the save helper, and
// set_network_weights(). Nothing is written on error paths that fire before
// the first byte, and callers buffer the output so a failing conversion
// leaves no artifact behind.
func Convert(ctx context.Context, net *graph.Network, opts Options, w io.Writer) error {
	logger := ctxlog.FromContext(ctx)
	e := &emitter{net: net, opts: opts, w: w}

	e.printf("import caffe \n")
	e.printf("from caffe import layers as L, params as P\n")
	e.printf("import numpy as np\n")

	// dlib nets don't commit to a batch size, so 1 is the default.
	e.printf("\n# Input tensor dimensions\n")
	e.printf("batch_size = 1;\n")
	if err := e.writeInputDims(); err != nil {
		return err
	}
	e.printf("\n")

	e.printf("def make_netspec():\n")
	e.printf("    # For reference, the only \"documentation\" about caffe layer parameters seems to be this page:\n")
	e.printf("    # https://github.com/BVLC/caffe/blob/master/src/caffe/proto/caffe.proto\n\n")
	e.printf("    n = caffe.NetSpec(); \n")
	e.printf("    n.data,n.label = L.MemoryData(batch_size=batch_size, channels=input_k, height=input_nr, width=input_nc, ntop=2)\n")
	for i := 0; i < net.Len(); i++ {
		if net.Layer(i).Kind != layer.KindComp {
			continue
		}
		decl, err := e.declFor(i)
		if err != nil {
			return err
		}
		e.printf("%s\n", decl)
	}
	e.printf("    return n.to_proto();\n\n\n")

	e.printf("def save_as_caffe_model(def_file, weights_file):\n")
	e.printf("    with open(def_file, 'w') as f: f.write(str(make_netspec()));\n")
	e.printf("    net = caffe.Net(def_file, caffe.TEST);\n")
	e.printf("    set_network_weights(net);\n")
	e.printf("    net.save(weights_file);\n\n\n")

	if err := e.writeWeights(); err != nil {
		return err
	}

	logger.Debug("Emitted caffe model code.", "layer_count", net.Len())
	return e.err
}

// writeInputDims derives the input tensor dimensions from the input layer's
// detail type. Only three input variants are convertible.
func (e *emitter) writeInputDims() error {
	in := e.net.Layer(0)
	d := e.opts.DefaultInputSize
	switch in.Detail {
	case layer.DetailInputRGBImage:
		e.printf("input_nr = %d; #WARNING, the source dlib network didn't commit to a specific input size, so we put %d here as a default.\n", d, d)
		e.printf("input_nc = %d; #WARNING, the source dlib network didn't commit to a specific input size, so we put %d here as a default.\n", d, d)
		e.printf("input_k = 3;\n")
	case layer.DetailInputRGBImageSized:
		nr, err := in.Attribute("nr")
		if err != nil {
			return err
		}
		nc, err := in.Attribute("nc")
		if err != nil {
			return err
		}
		e.printf("input_nr = %s;\n", e.num(nr))
		e.printf("input_nc = %s;\n", e.num(nc))
		e.printf("input_k = 3;\n")
	case layer.DetailInput:
		e.printf("input_nr = %d; #WARNING, the source dlib network didn't commit to a specific input size, so we put %d here as a default.\n", d, d)
		e.printf("input_nc = %d; #WARNING, the source dlib network didn't commit to a specific input size, so we put %d here as a default.\n", d, d)
		e.printf("input_k = 1;\n")
	default:
		return fmt.Errorf("no known transformation from dlib's %s layer to caffe", in.DetailName)
	}
	return nil
}

// writeWeights emits the relayout blocks for every parameter-carrying layer,
// assigned into the declared layer's parameter slots. The target shape is
// read back from caffe's own declaration rather than recomputed here.
func (e *emitter) writeWeights() error {
	e.printf("def set_network_weights(net):\n")
	e.printf("    # populate network parameters\n")
	for i := 0; i < e.net.Len(); i++ {
		l := e.net.Layer(i)
		if l.Kind != layer.KindComp {
			continue
		}

		switch l.Detail {
		case layer.DetailCon:
			weights, biases, err := convBlocks(l)
			if err != nil {
				return err
			}
			e.writeParam(l.Name(), 0, weights)
			e.writeParam(l.Name(), 1, biases)
		case layer.DetailFC:
			weights, biases, err := fcBlocks(l)
			if err != nil {
				return err
			}
			e.writeParam(l.Name(), 0, weights)
			e.writeParam(l.Name(), 1, biases)
		case layer.DetailFCNoBias:
			weights, err := fcNoBiasBlock(l)
			if err != nil {
				return err
			}
			e.writeParam(l.Name(), 0, weights)
		case layer.DetailAffineCon, layer.DetailAffineFC:
			gamma, beta, err := affineBlocks(l)
			if err != nil {
				return err
			}
			e.writeParam(l.Name(), 0, gamma)
			e.writeParam(l.Name(), 1, beta)
		}
	}
	return e.err
}

func (e *emitter) writeParam(name string, slot int, vals []float64) {
	e.printf("    p = %s;\n", e.npArray(vals))
	e.printf("    p.shape = net.params['%s'][%d].data.shape;\n", name, slot)
	e.printf("    net.params['%s'][%d].data[:] = p;\n", name, slot)
}
