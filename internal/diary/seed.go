package diary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSeed reads the fallback collection served before anything is persisted.
//
// Both JSON and YAML files are accepted, picked by extension. An empty path
// yields an empty seed.
func LoadSeed(path string) ([]Entry, error) {
	if path == "" {
		return []Entry{}, nil
	}

	byts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading seed file: %w", err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(byts, &entries)
	default:
		err = json.Unmarshal(byts, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding seed file %s: %w", path, err)
	}
	if entries == nil {
		entries = []Entry{}
	}

	return entries, nil
}
