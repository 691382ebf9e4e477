package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfigPath is where `jirabot config set` writes when no config
// file was loaded.
func ProjectConfigPath() string {
	return filepath.Join(".jirabot", "config.yaml")
}

// SetInFile writes key=value into the YAML file at path, creating the file
// and any intermediate maps. Comments and the order of other keys are kept.
func SetInFile(path, key, value string) error {
	if err := ValidateKey(key, value); err != nil {
		return err
	}

	data, err := os.ReadFile(path) // #nosec G304 - config file path from caller
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var root yaml.Node
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a map", path)
	}

	node := root.Content[0]
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child := lookupChild(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: part}, child)
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("%s: %s is not a map", path, part)
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	val := scalarNode(value)
	if existing := lookupChild(node, leaf); existing != nil {
		existing.Kind, existing.Tag, existing.Value, existing.Style, existing.Content =
			val.Kind, val.Tag, val.Value, val.Style, nil
	} else {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: leaf}, val)
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func lookupChild(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// scalarNode keeps booleans and numbers untagged so they stay typed, and
// tags everything else as a string.
func scalarNode(value string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if _, err := strconv.ParseBool(value); err == nil {
		return n
	}
	if _, err := strconv.Atoi(value); err == nil {
		return n
	}
	n.SetString(value)
	return n
}
