package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a boot manifest from the provided path.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f, absPath)
}

// Parse decodes a manifest from r. source names the origin in errors.
func Parse(r io.Reader, source string) (*Manifest, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var doc Manifest
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			// An empty document is a valid manifest: defaults, no boot list.
			doc = Manifest{}
		} else {
			return nil, fmt.Errorf("%s: decode: %w", source, err)
		}
	}

	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &doc, nil
}
