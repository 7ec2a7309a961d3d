package caffe

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/E452003/dlib/internal/layer"
)

// flattenTransposed returns the elements of m's transpose in row-major
// order, which is the element order caffe expects for weight blocks.
func flattenTransposed(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// flatten returns m's elements in row-major order, unchanged.
func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func requireParams(l *layer.Layer) error {
	if l.Params == nil {
		return fmt.Errorf("%s layer has no parameter matrix", l.DetailName)
	}
	return nil
}

// convBlocks splits a convolution's parameter matrix into its filter weights
// (all rows but the final num_filters) and biases (the final num_filters
// rows), both transposed.
func convBlocks(l *layer.Layer) (weights, biases []float64, err error) {
	if err := requireParams(l); err != nil {
		return nil, nil, err
	}
	nf, err := l.Attribute("num_filters")
	if err != nil {
		return nil, nil, err
	}
	f := int(nf)
	r, c := l.Params.Dims()
	if f <= 0 || f >= r {
		return nil, nil, fmt.Errorf("con layer has %d parameter rows for %d filters", r, f)
	}
	weights = flattenTransposed(l.Params.Slice(0, r-f, 0, c))
	biases = flattenTransposed(l.Params.Slice(r-f, r, 0, c))
	return weights, biases, nil
}

// fcBlocks splits a biased fully-connected layer's parameters: all rows but
// the last are the transposed weights, the last row is the bias vector
// as stored.
func fcBlocks(l *layer.Layer) (weights, biases []float64, err error) {
	if err := requireParams(l); err != nil {
		return nil, nil, err
	}
	r, c := l.Params.Dims()
	if r < 2 {
		return nil, nil, fmt.Errorf("fc layer parameter matrix has %d rows, want at least 2", r)
	}
	weights = flattenTransposed(l.Params.Slice(0, r-1, 0, c))
	biases = flatten(l.Params.Slice(r-1, r, 0, c))
	return weights, biases, nil
}

// fcNoBiasBlock transposes the whole parameter matrix.
func fcNoBiasBlock(l *layer.Layer) ([]float64, error) {
	if err := requireParams(l); err != nil {
		return nil, err
	}
	return flattenTransposed(l.Params), nil
}

// affineBlocks splits an affine layer's 2*d parameters into the scale
// (gamma) half followed by the shift (beta) half.
func affineBlocks(l *layer.Layer) (gamma, beta []float64, err error) {
	if err := requireParams(l); err != nil {
		return nil, nil, err
	}
	all := flatten(l.Params)
	if len(all)%2 != 0 {
		return nil, nil, fmt.Errorf("affine layer has %d parameters, want an even count", len(all))
	}
	d := len(all) / 2
	return all[:d], all[d:], nil
}
