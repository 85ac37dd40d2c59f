package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jobfill/jobfill/internal/domain"
)

// Format is the encoding of a mapping document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the document format from a file or object name.
func FormatFor(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// decode splits a mapping document into entries, preserving declaration
// order. Only the top-level shape must be well formed; each rule is decoded
// later and may fail on its own.
func decode(data []byte, format Format) ([]entry, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	default:
		return decodeJSON(data)
	}
}

func decodeJSON(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading mapping document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("mapping document must be a JSON object")
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading mapping key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("reading mapping %q: %w", key, err)
		}
		entries = append(entries, entry{
			key: key,
			decode: func(m *domain.FieldMapping) error {
				return json.Unmarshal(raw, m)
			},
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading mapping document: %w", err)
	}
	return entries, nil
}

func decodeYAML(data []byte) ([]entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("reading mapping document: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("mapping document must be a YAML mapping")
	}

	entries := make([]entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		entries = append(entries, entry{
			key: keyNode.Value,
			decode: func(m *domain.FieldMapping) error {
				if valNode.Kind != yaml.MappingNode {
					return fmt.Errorf("line %d: rule must be a mapping", valNode.Line)
				}
				return valNode.Decode(m)
			},
		})
	}
	return entries, nil
}
