package caffe

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/E452003/dlib/internal/graph"
	"github.com/E452003/dlib/internal/netxml"
)

var testOpts = Options{DefaultInputSize: 28, Precision: 9}

// buildNet parses a document and wraps it in a forward-ordered network.
func buildNet(t *testing.T, doc string) *graph.Network {
	t.Helper()
	layers, err := netxml.Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	return graph.New(layers)
}

func convertString(t *testing.T, doc string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := Convert(context.Background(), buildNet(t, doc), testOpts, &buf)
	return buf.String(), err
}

// lenetDoc models the chain loss -> fc_no_bias(10) -> relu -> con(6 filters,
// 5x5, stride 1, pad 0) -> rgb input, in document (reverse) order.
const lenetDoc = `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <fc_no_bias num_outputs='10'>
1 2
3 4
    </fc_no_bias>
  </layer>
  <layer idx='2' type='comp'>
    <relu/>
  </layer>
  <layer idx='3' type='comp'>
    <con num_filters='6' nr='5' nc='5' stride_x='1' stride_y='1' padding_x='0' padding_y='0'>
0.1
0.2
1
2
3
4
5
6
    </con>
  </layer>
  <layer idx='4' type='input'>
    <input_rgb_image/>
  </layer>
</net>`

func TestConvertChain(t *testing.T) {
	out, err := convertString(t, lenetDoc)
	require.NoError(t, err)

	// Input dimensions are defaulted with an explicit warning.
	assert.Contains(t, out, "batch_size = 1;")
	assert.Contains(t, out, "input_nr = 28; #WARNING")
	assert.Contains(t, out, "input_nc = 28; #WARNING")
	assert.Contains(t, out, "input_k = 3;")

	// Declarations reference their resolved inputs, in forward order.
	decls := []string{
		"    n.con3 = L.Convolution(n.data, num_output=6, kernel_w=5, kernel_h=5, stride_w=1, stride_h=1, pad_w=0, pad_h=0);",
		"    n.relu2 = L.ReLU(n.con3);",
		"    n.fc_no_bias1 = L.InnerProduct(n.relu2, num_output=10, bias_term=False);",
	}
	last := -1
	for _, d := range decls {
		idx := strings.Index(out, d)
		require.GreaterOrEqual(t, idx, 0, d)
		assert.Greater(t, idx, last, "declarations out of order: %s", d)
		last = idx
	}

	// Loss and input layers produce no declarations.
	assert.NotContains(t, out, "loss_multiclass_log")

	// The convolution's final 6 rows become a separate bias block; the
	// remaining rows form the weight block.
	assert.Contains(t, out, "p = np.array([0.1,0.2,], dtype='float32');")
	assert.Contains(t, out, "p = np.array([1,2,3,4,5,6,], dtype='float32');")
	assert.Contains(t, out, "p.shape = net.params['con3'][0].data.shape;")
	assert.Contains(t, out, "p.shape = net.params['con3'][1].data.shape;")

	// fc_no_bias emits a single transposed block into slot 0 only.
	assert.Contains(t, out, "p = np.array([1,3,2,4,], dtype='float32');")
	assert.Contains(t, out, "net.params['fc_no_bias1'][0].data[:] = p;")
	assert.NotContains(t, out, "net.params['fc_no_bias1'][1]")

	// Generated boilerplate is present.
	assert.Contains(t, out, "def make_netspec():")
	assert.Contains(t, out, "def save_as_caffe_model(def_file, weights_file):")
	assert.Contains(t, out, "def set_network_weights(net):")
	assert.Contains(t, out, "return n.to_proto();")
}

func TestConvertIsDeterministic(t *testing.T) {
	first, err := convertString(t, lenetDoc)
	require.NoError(t, err)
	second, err := convertString(t, lenetDoc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConvertSizedInput(t *testing.T) {
	doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <relu/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image_sized nr='150' nc='150'/>
  </layer>
</net>`
	out, err := convertString(t, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "input_nr = 150;\n")
	assert.Contains(t, out, "input_nc = 150;\n")
	assert.Contains(t, out, "input_k = 3;")
	assert.NotContains(t, out, "#WARNING")
}

func TestConvertGrayscaleInput(t *testing.T) {
	doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <relu/>
  </layer>
  <layer idx='2' type='input'>
    <input/>
  </layer>
</net>`
	out, err := convertString(t, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "input_k = 1;")
	assert.Contains(t, out, "#WARNING")
}

func TestConvertPooling(t *testing.T) {
	t.Run("kernel size zero means global pooling", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <max_pool nr='0' nc='0' stride_x='1' stride_y='1' padding_x='0' padding_y='0'/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		out, err := convertString(t, doc)
		require.NoError(t, err)
		assert.Contains(t, out,
			"    n.max_pool1 = L.Pooling(n.data, pool=P.Pooling.MAX, global_pooling=True, stride_w=1, stride_h=1, pad_w=0, pad_h=0);")
	})

	t.Run("average pooling with kernel", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <avg_pool nr='2' nc='2' stride_x='2' stride_y='2' padding_x='0' padding_y='0'/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		out, err := convertString(t, doc)
		require.NoError(t, err)
		assert.Contains(t, out,
			"    n.avg_pool1 = L.Pooling(n.data, pool=P.Pooling.AVE, kernel_w=2, kernel_h=2, stride_w=2, stride_h=2, pad_w=0, pad_h=0);")
	})

	t.Run("non-zero padding is unconvertible", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <max_pool nr='2' nc='2' stride_x='2' stride_y='2' padding_x='1' padding_y='0'/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		_, err := convertString(t, doc)
		assert.ErrorContains(t, err, "pooling with non-zero padding")
	})
}

func TestConvertResidual(t *testing.T) {
	t.Run("eltwise sum references the tagged layer", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <add_prev tag='1'/>
  </layer>
  <layer idx='2' type='comp'>
    <relu/>
  </layer>
  <layer type='tag' id='1'/>
  <layer idx='3' type='comp'>
    <con num_filters='1' nr='3' nc='3' stride_x='1' stride_y='1' padding_x='1' padding_y='1'>
1
2
    </con>
  </layer>
  <layer idx='4' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		out, err := convertString(t, doc)
		require.NoError(t, err)
		assert.Contains(t, out,
			"    n.add_prev1 = L.Eltwise(n.relu2, n.con3, operation=P.Eltwise.SUM);")
	})

	t.Run("dangling tag reference is fatal", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <add_prev tag='5'/>
  </layer>
  <layer idx='2' type='comp'>
    <relu/>
  </layer>
  <layer idx='3' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		_, err := convertString(t, doc)
		assert.ErrorContains(t, err, "skip back to a non-existing layer")
	})
}

func TestConvertRejections(t *testing.T) {
	t.Run("batch norm", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <bn_con/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		_, err := convertString(t, doc)
		assert.ErrorContains(t, err, "batch norm")
	})

	t.Run("unknown computational layer", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <softmax_fancy/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		_, err := convertString(t, doc)
		assert.ErrorContains(t, err, "no known transformation from dlib's softmax_fancy layer")
	})

	t.Run("unknown input layer", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <relu/>
  </layer>
  <layer idx='2' type='input'>
    <input_tensor/>
  </layer>
</net>`
		_, err := convertString(t, doc)
		assert.ErrorContains(t, err, "no known transformation from dlib's input_tensor layer")
	})

	t.Run("missing required attribute", func(t *testing.T) {
		doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <fc/>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
		_, err := convertString(t, doc)
		assert.ErrorContains(t, err, "doesn't have the requested attribute")
	})
}

func TestConvertScaleLayers(t *testing.T) {
	doc := `<net>
  <layer idx='0' type='loss'>
    <loss_multiclass_log/>
  </layer>
  <layer idx='1' type='comp'>
    <affine_con>
1
2
10
20
    </affine_con>
  </layer>
  <layer idx='2' type='input'>
    <input_rgb_image/>
  </layer>
</net>`
	out, err := convertString(t, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "    n.affine_con1 = L.Scale(n.data, axis=1, bias_term=True);")
	assert.Contains(t, out, "p = np.array([1,2,], dtype='float32');")
	assert.Contains(t, out, "p = np.array([10,20,], dtype='float32');")
	assert.Contains(t, out, "net.params['affine_con1'][1].data[:] = p;")
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "lenet_dlib_to_caffe_model.py", OutputName("lenet.xml", "_dlib_to_caffe_model.py"))
	assert.Equal(t, "nets/resnet_dlib_to_caffe_model.py", OutputName("nets/resnet.v2.xml", "_dlib_to_caffe_model.py"))
	assert.Equal(t, "plain_net.py", OutputName("plain", "_net.py"))
}

func TestNumFormatting(t *testing.T) {
	e := &emitter{opts: testOpts}
	assert.Equal(t, "6", e.num(6))
	assert.Equal(t, "0.1", e.num(0.1))
	assert.Equal(t, "0.333333333", e.num(1.0/3.0))
}
