package document

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON serializes the tree as JSON with mapping keys in insertion
// order. The output is deterministic for unchanged input, which the
// idempotence comparison and the $json directive rely on.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encodeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encodeJSON(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case KindScalar:
		data, err := json.Marshal(n.Value)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encodeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		for i, e := range n.Entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := e.Value.encodeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// JSONString returns the canonical JSON serialization of the tree.
func (n *Node) JSONString() (string, error) {
	data, err := n.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSONEquivalent reports whether two values have the same JSON shape,
// ignoring mapping order and the concrete Go types produced by different
// decoders (yaml int64 vs json float64 and so on).
func JSONEquivalent(a, b interface{}) bool {
	na, err := normalizeJSON(a)
	if err != nil {
		return false
	}
	nb, err := normalizeJSON(b)
	if err != nil {
		return false
	}
	return bytes.Equal(na, nb)
}

// normalizeJSON round-trips v through encoding/json so numbers, mapping
// order and nested types compare structurally.
func normalizeJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return canonicalJSON(decoded)
}

func canonicalJSON(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range sortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			inner, err := canonicalJSON(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(inner)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			inner, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			buf.Write(inner)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(val)
	}
}
