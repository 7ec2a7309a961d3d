package caffe

import (
	"fmt"

	"github.com/E452003/dlib/internal/layer"
)

// attrValues fetches a run of required attributes, failing on the first
// missing key.
func attrValues(l *layer.Layer, keys ...string) ([]float64, error) {
	vals := make([]float64, len(keys))
	for i, k := range keys {
		v, err := l.Attribute(k)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// declFor translates the layer at forward position i into one caffe NetSpec
// declaration line, with its input edge(s) resolved to generated names.
func (e *emitter) declFor(i int) (string, error) {
	l := e.net.Layer(i)
	in, err := e.net.InputName(i)
	if err != nil {
		return "", err
	}

	switch l.Detail {
	case layer.DetailCon:
		v, err := attrValues(l, "num_filters", "nc", "nr", "stride_x", "stride_y", "padding_x", "padding_y")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("    n.%s = L.Convolution(n.%s, num_output=%s, kernel_w=%s, kernel_h=%s, stride_w=%s, stride_h=%s, pad_w=%s, pad_h=%s);",
			l.Name(), in, e.num(v[0]), e.num(v[1]), e.num(v[2]), e.num(v[3]), e.num(v[4]), e.num(v[5]), e.num(v[6])), nil

	case layer.DetailRelu:
		return fmt.Sprintf("    n.%s = L.ReLU(n.%s);", l.Name(), in), nil

	case layer.DetailMaxPool:
		return e.poolDecl(l, in, "MAX")

	case layer.DetailAvgPool:
		return e.poolDecl(l, in, "AVE")

	case layer.DetailFC:
		v, err := attrValues(l, "num_outputs")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("    n.%s = L.InnerProduct(n.%s, num_output=%s, bias_term=True);",
			l.Name(), in, e.num(v[0])), nil

	case layer.DetailFCNoBias:
		v, err := attrValues(l, "num_outputs")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("    n.%s = L.InnerProduct(n.%s, num_output=%s, bias_term=False);",
			l.Name(), in, e.num(v[0])), nil

	case layer.DetailBNCon, layer.DetailBNFC:
		return "", fmt.Errorf("conversion from dlib's batch norm layers to caffe's isn't supported. Instead, " +
			"you should put your network into 'test mode' by switching batch norm layers to affine layers")

	case layer.DetailAffineCon:
		return fmt.Sprintf("    n.%s = L.Scale(n.%s, axis=1, bias_term=True);", l.Name(), in), nil

	case layer.DetailAffineFC:
		return fmt.Sprintf("    n.%s = L.Scale(n.%s, axis=3, bias_term=True);", l.Name(), in), nil

	case layer.DetailAddPrev:
		tag, err := l.Attribute("tag")
		if err != nil {
			return "", err
		}
		second, err := e.net.NameOfTag(i, int(tag))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("    n.%s = L.Eltwise(n.%s, n.%s, operation=P.Eltwise.SUM);",
			l.Name(), in, second), nil

	default:
		return "", fmt.Errorf("no known transformation from dlib's %s layer to caffe", l.DetailName)
	}
}

// poolDecl handles max_pool and avg_pool. A kernel size of 0 means global
// pooling. dlib and caffe implement pooling padding differently, so any
// non-zero padding is unconvertible.
func (e *emitter) poolDecl(l *layer.Layer, in, op string) (string, error) {
	v, err := attrValues(l, "nc", "nr", "stride_x", "stride_y", "padding_x", "padding_y")
	if err != nil {
		return "", err
	}
	nc, nr, strideX, strideY, padX, padY := v[0], v[1], v[2], v[3], v[4], v[5]

	if padX != 0 || padY != 0 {
		return "", fmt.Errorf("dlib and caffe implement pooling with non-zero padding differently, so you can't convert a " +
			"network with such pooling layers")
	}

	kernel := fmt.Sprintf("kernel_w=%s, kernel_h=%s", e.num(nc), e.num(nr))
	if nc == 0 {
		kernel = "global_pooling=True"
	}
	return fmt.Sprintf("    n.%s = L.Pooling(n.%s, pool=P.Pooling.%s, %s, stride_w=%s, stride_h=%s, pad_w=%s, pad_h=%s);",
		l.Name(), in, op, kernel, e.num(strideX), e.num(strideY), e.num(padX), e.num(padY)), nil
}
