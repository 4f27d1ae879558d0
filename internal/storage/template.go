package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
)

// LoadTemplate reads a default document from a .json, .yaml/.yml or .toml
// file. YAML and TOML use the same field names as the JSON form.
func LoadTemplate(path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(filepath.Ext(path), data)
}

// ParseTemplate decodes a template given its file extension.
func ParseTemplate(ext string, data []byte) (*document.Document, error) {
	switch strings.ToLower(ext) {
	case ".json":
		doc, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("template: %w", err)
		}
		return doc, nil

	case ".yaml", ".yml":
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("template: yaml: %w", err)
		}
		return fromGeneric(generic)

	case ".toml":
		var generic map[string]any
		if err := toml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("template: toml: %w", err)
		}
		return fromGeneric(generic)

	default:
		return nil, fmt.Errorf("template: unsupported format %q", ext)
	}
}

// fromGeneric re-encodes a decoded tree as JSON so every format shares the
// document's JSON field names.
func fromGeneric(v map[string]any) (*document.Document, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	return doc, nil
}
