package ocr

// Node is the recognizer's result tree. Engines group fragments however
// they like (by line, block, region...), so the shape is not fixed; only
// the string leaves matter.
type Node interface {
	isNode()
}

// Scalar is a recognized text fragment.
type Scalar string

// Sequence is an ordered group of nodes.
type Sequence []Node

// Entry is one keyed member of a Mapping.
type Entry struct {
	Key   string
	Value Node
}

// Mapping is an ordered keyed group. Keys describe structure and are not text.
type Mapping []Entry

func (Scalar) isNode()   {}
func (Sequence) isNode() {}
func (Mapping) isNode()  {}

// Flatten returns every string leaf of n in depth-first order.
func Flatten(n Node) []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Scalar:
			out = append(out, string(v))
		case Sequence:
			for _, c := range v {
				walk(c)
			}
		case Mapping:
			for _, e := range v {
				walk(e.Value)
			}
		}
	}
	walk(n)
	return out
}

// FromJSON converts a value produced by a JSON decoder into a Node. Numbers,
// booleans and nulls carry no text and are dropped. Object members are
// emitted in the order the decoder iterates them, which does not matter for
// candidate extraction.
func FromJSON(v any) Node {
	switch t := v.(type) {
	case string:
		return Scalar(t)
	case []any:
		seq := make(Sequence, 0, len(t))
		for _, e := range t {
			if n := FromJSON(e); n != nil {
				seq = append(seq, n)
			}
		}
		return seq
	case map[string]any:
		m := make(Mapping, 0, len(t))
		for k, e := range t {
			if n := FromJSON(e); n != nil {
				m = append(m, Entry{Key: k, Value: n})
			}
		}
		return m
	}
	return nil
}
