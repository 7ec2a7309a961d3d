package graph

import (
	"fmt"

	"github.com/E452003/dlib/internal/layer"
)

// Network is the reconstructed computation graph in forward order: index 0
// is the input layer, the last index is the loss layer. It is immutable
// after construction.
type Network struct {
	layers []layer.Layer
	// tags maps a tag id to the forward positions carrying it, ascending.
	tags map[int][]int
}

// New builds a Network from layers in document order (reverse topological,
// input last), reversing them once so that all later logic runs forward.
func New(doc []layer.Layer) *Network {
	fwd := make([]layer.Layer, len(doc))
	for i, l := range doc {
		fwd[len(doc)-1-i] = l
	}
	tags := make(map[int][]int)
	for i, l := range fwd {
		if l.TagID != -1 {
			tags[l.TagID] = append(tags[l.TagID], i)
		}
	}
	return &Network{layers: fwd, tags: tags}
}

// Len returns the number of layers in the network.
func (n *Network) Len() int {
	return len(n.layers)
}

// Layer returns the layer at forward position i.
func (n *Network) Layer(i int) *layer.Layer {
	return &n.layers[i]
}

// Name returns the generated name of the layer at forward position i.
func (n *Network) Name(i int) string {
	return n.layers[i].Name()
}

// InputName resolves the name of the layer supplying input to position i.
// Without a skip id that is the immediate forward predecessor; with one it
// is the nearest earlier layer carrying the matching tag.
func (n *Network) InputName(i int) (string, error) {
	if n.layers[i].SkipID == -1 {
		return n.layers[i-1].Name(), nil
	}
	return n.NameOfTag(i, n.layers[i].SkipID)
}

// NameOfTag returns the generated name of the nearest layer before position
// i carrying the given tag id. A tagged input layer is a valid anchor and
// resolves to "data".
func (n *Network) NameOfTag(i int, tag int) (string, error) {
	positions := n.tags[tag]
	for k := len(positions) - 1; k >= 0; k-- {
		if positions[k] < i {
			return n.layers[positions[k]].Name(), nil
		}
	}
	return "", fmt.Errorf("network definition is bad, a layer wanted to skip back to a non-existing layer")
}
