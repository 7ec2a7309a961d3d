package layer

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Kind classifies a layer as computational, loss, or input.
type Kind int

const (
	KindComp Kind = iota
	KindLoss
	KindInput
)

// ParseKind maps the XML layer 'type' attribute onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "comp":
		return KindComp, nil
	case "loss":
		return KindLoss, nil
	case "input":
		return KindInput, nil
	default:
		return KindComp, fmt.Errorf("unknown layer type %q", s)
	}
}

// String returns the XML spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindLoss:
		return "loss"
	case KindInput:
		return "input"
	default:
		return "comp"
	}
}

// Layer is one node of the reconstructed computation graph. Layers are built
// once per document by the netxml parser and read-only afterwards.
type Layer struct {
	Kind       Kind
	Index      int
	DetailName string
	Detail     DetailType
	Attributes map[string]float64
	// Params holds the layer's learned weights exactly as stored in the
	// source, or nil when the layer carries none. The row/column convention
	// is detail-type specific.
	Params *mat.Dense
	// TagID is -1 unless this layer is a named anchor.
	TagID int
	// SkipID is -1 unless this layer draws its input from the most recent
	// graph-earlier layer carrying TagID == SkipID instead of its
	// immediate predecessor.
	SkipID int
}

// New returns a Layer with the tag and skip sentinels set.
func New() Layer {
	return Layer{TagID: -1, SkipID: -1}
}

// Attribute looks up a numeric attribute by key.
func (l *Layer) Attribute(key string) (float64, error) {
	v, ok := l.Attributes[key]
	if !ok {
		return 0, fmt.Errorf("layer doesn't have the requested attribute %q", key)
	}
	return v, nil
}

// Name returns the identifier the layer is referred to by in generated
// output: "data" for the input layer, otherwise the detail name followed by
// the layer's source index. The source's own indexing keeps names unique.
func (l *Layer) Name() string {
	if l.Kind == KindInput {
		return "data"
	}
	return l.DetailName + strconv.Itoa(l.Index)
}
