package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is the document form of a YAML source configuration.
type Registry struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads the source configuration at path. YAML files (.yaml, .yml)
// may be either a bare list or a document with a top-level "sources" key;
// anything else is read as a JSON array.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var sources []Source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		sources, err = decodeYAMLSources(data)
	default:
		sources, err = decodeJSONSources(data)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	for i, src := range sources {
		if strings.TrimSpace(src.Key) == "" {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("entry %d: missing key", i)}
		}
		if strings.TrimSpace(src.URL) == "" {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("entry %d (%s): missing url", i, src.Key)}
		}
		if src.Name == "" {
			sources[i].Name = src.Key
		}
	}

	return sources, nil
}

func decodeJSONSources(data []byte) ([]Source, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	var sources []Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func decodeYAMLSources(data []byte) ([]Source, error) {
	// Expand environment variables within the YAML content (e.g. ${SHEET_URL})
	expanded := []byte(os.ExpandEnv(string(data)))

	var node yaml.Node
	if err := yaml.Unmarshal(expanded, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, errors.New("empty file")
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var sources []Source
		if err := root.Decode(&sources); err != nil {
			return nil, err
		}
		return sources, nil
	case yaml.MappingNode:
		var reg Registry
		if err := root.Decode(&reg); err != nil {
			return nil, err
		}
		return reg.Sources, nil
	default:
		return nil, errors.New("expected a list of sources")
	}
}
