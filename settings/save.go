package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SetShowCaption turns captions on or off in the settings file at path and
// leaves every other key as written. The file is replaced atomically, so a
// Watcher on it reports the change.
func SetShowCaption(path string, show bool) error {
	return setKey(path, "show_caption", show)
}

func setKey(path, key string, value bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Path: path, Err: err}
	}

	var out []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		out, err = setYAMLKey(data, key, value)
	default:
		out, err = setJSONKey(data, key, value)
	}
	if err != nil {
		return &ConfigurationError{Path: path, Err: err}
	}

	// the result must still load
	s := Default()
	if err := yaml.Unmarshal(out, s); err != nil {
		return &ConfigurationError{Path: path, Err: fmt.Errorf("rewritten settings do not parse: %w", err)}
	}
	if err := s.Validate(); err != nil {
		return &ConfigurationError{Path: path, Err: err}
	}

	return writeAtomic(path, out)
}

func setJSONKey(data []byte, key string, value bool) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("malformed settings: %w", err)
	}
	fields[key] = json.RawMessage(strconv.FormatBool(value))

	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return append(out, '\n'), nil
}

// setYAMLKey edits the document tree so comments and key order survive.
func setYAMLKey(data []byte, key string, value bool) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed settings: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("settings must be a mapping, got %s", root.Tag)
	}

	val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(value)}
	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = val
			found = true
		}
	}
	if !found {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace settings %s: %w", path, err)
	}
	return nil
}
