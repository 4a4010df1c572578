package document

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML node into the tree, preserving mapping key
// order. Anchors are followed; non-string mapping keys are rejected.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	decoded, err := fromYAMLNode(value)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

func fromYAMLNode(value *yaml.Node) (*Node, error) {
	switch value.Kind {
	case yaml.DocumentNode:
		if len(value.Content) != 1 {
			return nil, fmt.Errorf("expected single document, got %d", len(value.Content))
		}
		return fromYAMLNode(value.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(value.Alias)
	case yaml.ScalarNode:
		var v interface{}
		if err := value.Decode(&v); err != nil {
			return nil, err
		}
		return Scalar(v), nil
	case yaml.SequenceNode:
		items := make([]*Node, 0, len(value.Content))
		for _, item := range value.Content {
			child, err := fromYAMLNode(item)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return &Node{Kind: KindSequence, Items: items}, nil
	case yaml.MappingNode:
		m := Mapping()
		for i := 0; i+1 < len(value.Content); i += 2 {
			keyNode := value.Content[i]
			if keyNode.Kind == yaml.AliasNode {
				keyNode = keyNode.Alias
			}
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be strings", keyNode.Line)
			}
			var key string
			if err := keyNode.Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: mapping keys must be strings: %w", keyNode.Line, err)
			}
			child, err := fromYAMLNode(value.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(key, child)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d", value.Kind)
	}
}

// Parse decodes YAML text into a configuration tree.
func Parse(data []byte) (*Node, error) {
	node := &Node{}
	if err := yaml.Unmarshal(data, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	node, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return node, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
