// Package recipefile reads formulation requests from YAML, TOML or JSON files.
package recipefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"doughline/internal/domain"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// BaseFunc returns the request that file values are laid over. It receives
// the style named in the file, or "" when the file names none.
type BaseFunc func(style domain.Style) domain.FormulationRequest

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported recipe file extension %q (want .yml, .yaml, .toml or .json)", filepath.Ext(path))
}

// Load reads path and decodes it over base.
func Load(path string, base BaseFunc) (domain.FormulationRequest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return domain.FormulationRequest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FormulationRequest{}, err
	}
	req, err := Parse(data, format, base)
	if err != nil {
		return domain.FormulationRequest{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// Parse decodes data in the given format. Unknown keys are rejected so a
// misspelled field does not silently fall back to a default.
func Parse(data []byte, format Format, base BaseFunc) (domain.FormulationRequest, error) {
	raw := map[string]any{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return domain.FormulationRequest{}, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return domain.FormulationRequest{}, fmt.Errorf("parse toml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return domain.FormulationRequest{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return domain.FormulationRequest{}, fmt.Errorf("unsupported format %q", format)
	}

	var req domain.FormulationRequest
	if base != nil {
		style, _ := raw["style"].(string)
		req = base(domain.Style(style))
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return domain.FormulationRequest{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return domain.FormulationRequest{}, fmt.Errorf("decode recipe: %w", err)
	}
	return req, nil
}
