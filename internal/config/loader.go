package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML document at path, applies defaults, and returns it
// unvalidated. Callers should run Validate before trusting the result.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	doc.applyDefaults()
	doc.General.DataDir = expandPath(doc.General.DataDir)
	doc.Log.Dir = expandPath(doc.Log.Dir)
	for i := range doc.Nodes {
		doc.Nodes[i].OwnerKey = expandPath(doc.Nodes[i].OwnerKey)
		doc.Nodes[i].SuperKey = expandPath(doc.Nodes[i].SuperKey)
		for j := range doc.Nodes[i].Install {
			doc.Nodes[i].Install[j].SourcePath = expandPath(doc.Nodes[i].Install[j].SourcePath)
		}
	}

	return &doc, nil
}

// expandPath resolves "~" to the user's home directory and expands
// environment variable references, mirroring the deploy tooling's own path
// handling so keys and data directories accept the same shorthand.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.ExpandEnv(p)
}
