package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRaw reads the orchestrator's flat configuration mapping from a YAML
// file. Scalar values are kept exactly as written; null becomes "".
func LoadRaw(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseRaw(data)
}

// ParseRaw decodes a flat YAML mapping into string values. Values are taken
// from the source text rather than resolved, so "0012345" and "1.10" are
// passed to the snap unchanged.
func ParseRaw(data []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	raw := map[string]string{}
	if len(doc.Content) == 0 {
		return raw, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse config: expected a mapping at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		s, err := scalarString(value)
		if err != nil {
			return nil, fmt.Errorf("config key %q: %w", key.Value, err)
		}
		raw[key.Value] = s
	}
	return raw, nil
}

func scalarString(node *yaml.Node) (string, error) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a scalar value at line %d", node.Line)
	}
	if node.ShortTag() == "!!null" {
		return "", nil
	}
	return node.Value, nil
}
