package concepts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/socratic/internal/assessment"
)

// LoadCatalog reads a catalog file. Files ending in .json are decoded as
// JSON, everything else as YAML. Both the full analysis form and a bare
// list of concepts are accepted. The result is normalized and validated.
func LoadCatalog(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	a, err := decodeCatalog(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("decoding catalog %s: %w", path, err)
	}

	Normalize(a)
	if err := a.Concepts.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return a, nil
}

func decodeCatalog(data []byte, isJSON bool) (*Analysis, error) {
	var a Analysis
	if isJSON {
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			return &a, json.Unmarshal(data, &a.Concepts)
		}
		return &a, json.Unmarshal(data, &a)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return &a, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		return &a, root.Decode(&a.Concepts)
	}
	return &a, root.Decode(&a)
}

// WriteCatalog writes a as YAML.
func WriteCatalog(w io.Writer, a *Analysis) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}
	return enc.Close()
}

// Catalog returns the concepts of a, for starting a session.
func (a *Analysis) Catalog() assessment.Catalog {
	return append(assessment.Catalog(nil), a.Concepts...)
}
