package netxml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/E452003/dlib/internal/ctxlog"
	"github.com/E452003/dlib/internal/layer"
)

// parser holds the state threaded through one document's event stream.
type parser struct {
	layers []layer.Layer

	// cur is the layer under construction, or nil while inside a tag/skip
	// marker element.
	cur *layer.Layer
	// pendingTag is a tag id waiting to be attached to the next genuine
	// layer, or -1.
	pendingTag int
	// paramText accumulates character data inside a parameter-bearing
	// detail element.
	paramText strings.Builder

	stack    []string
	seenRoot bool
}

// ParseFile parses a dlib net_to_xml() document from disk.
func ParseFile(ctx context.Context, path string) ([]layer.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f)
}

// Parse consumes a dlib net_to_xml() document and returns its layers in
// document order, which is reverse topological order: the loss layer first,
// the input layer last.
func Parse(ctx context.Context, r io.Reader) ([]layer.Layer, error) {
	logger := ctxlog.FromContext(ctx)

	p := &parser{pendingTag: -1}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.startElement(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if err := p.endElement(t); err != nil {
				return nil, err
			}
		case xml.CharData:
			p.characters(t)
		}
	}

	if len(p.layers) == 0 {
		return nil, fmt.Errorf("no layers found in XML file")
	}
	if p.layers[len(p.layers)-1].Kind != layer.KindInput {
		return nil, fmt.Errorf("the network in the XML file is missing an input layer")
	}

	logger.Debug("Parsed network document.", "layer_count", len(p.layers))
	return p.layers, nil
}

func (p *parser) startElement(t xml.StartElement) error {
	name := t.Name.Local
	if !p.seenRoot {
		if name != "net" {
			return fmt.Errorf("the top level XML tag must be a 'net' tag, got %q", name)
		}
		p.seenRoot = true
	}

	switch {
	case name == "layer":
		atts := attrMap(t)
		switch atts["type"] {
		case "skip":
			// Not a layer of its own: redirect the input edge of the
			// most recently completed layer.
			if len(p.layers) == 0 {
				return fmt.Errorf("a skip layer was found as the first layer, but the first layer should be an input layer")
			}
			id, err := intAttr(atts, "id")
			if err != nil {
				return err
			}
			p.layers[len(p.layers)-1].SkipID = id
		case "tag":
			// Not a layer of its own: remember the id for the next
			// genuine layer.
			id, err := intAttr(atts, "id")
			if err != nil {
				return err
			}
			p.pendingTag = id
		default:
			l := layer.New()
			idx, err := intAttr(atts, "idx")
			if err != nil {
				return err
			}
			l.Index = idx
			kind, err := layer.ParseKind(atts["type"])
			if err != nil {
				return err
			}
			l.Kind = kind
			if p.pendingTag != -1 {
				l.TagID = p.pendingTag
				p.pendingTag = -1
			}
			p.cur = &l
		}

	case p.top() == "layer" && p.cur != nil:
		// The nested element names the concrete operation and carries its
		// numeric attributes.
		p.cur.DetailName = name
		p.cur.Detail = layer.ParseDetail(name)
		p.cur.Attributes = make(map[string]float64, len(t.Attr))
		for _, a := range t.Attr {
			v, err := strconv.ParseFloat(a.Value, 64)
			if err != nil {
				return fmt.Errorf("attribute %q of %q is not numeric: %w", a.Name.Local, name, err)
			}
			p.cur.Attributes[a.Name.Local] = v
		}
	}

	p.stack = append(p.stack, name)
	return nil
}

func (p *parser) endElement(t xml.EndElement) error {
	name := t.Name.Local
	if len(p.stack) > 0 {
		p.stack = p.stack[:len(p.stack)-1]
	}

	if layer.ParamBearing(name) && p.cur != nil && strings.TrimSpace(p.paramText.String()) != "" {
		params, err := parseMatrix(p.paramText.String())
		if err != nil {
			return fmt.Errorf("bad parameter matrix in %q layer: %w", name, err)
		}
		p.cur.Params = params
	}
	p.paramText.Reset()

	if name == "layer" && p.cur != nil {
		p.layers = append(p.layers, *p.cur)
		p.cur = nil
	}
	return nil
}

func (p *parser) characters(data xml.CharData) {
	if p.cur != nil && layer.ParamBearing(p.top()) {
		p.paramText.Write(data)
	}
}

func (p *parser) top() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// attrMap flattens an element's attributes into a name -> value map.
func attrMap(t xml.StartElement) map[string]string {
	m := make(map[string]string, len(t.Attr))
	for _, a := range t.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

func intAttr(atts map[string]string, key string) (int, error) {
	s, ok := atts[key]
	if !ok {
		return 0, fmt.Errorf("layer element is missing the %q attribute", key)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("layer attribute %q is not an integer: %w", key, err)
	}
	return v, nil
}

// parseMatrix reads whitespace/row-delimited numeric text into a dense
// matrix. Every non-blank line is one row; all rows must be the same width.
func parseMatrix(text string) (*mat.Dense, error) {
	var (
		data []float64
		rows int
		cols int
	)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if rows == 0 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", rows, len(fields), cols)
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("bad matrix element %q: %w", f, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, fmt.Errorf("empty matrix text")
	}
	return mat.NewDense(rows, cols, data), nil
}
