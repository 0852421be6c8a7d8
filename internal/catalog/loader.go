package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weftlab/weft/internal/types"
)

// LoadIssue records one file that could not be loaded. Issues are
// collected rather than aborting the whole load: a single malformed
// file in a catalog directory must not take down the build.
type LoadIssue struct {
	Path string
	Err  error
}

func (i LoadIssue) String() string {
	return fmt.Sprintf("%s: %v", i.Path, i.Err)
}

// LoadFile reads one catalog file. The format follows the extension:
// .json is parsed as JSON, everything else as YAML.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cat Catalog
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &cat); err != nil {
			return nil, types.NewValidationError("malformed JSON catalog %s: %v", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, types.NewValidationError("malformed YAML catalog %s: %v", path, err)
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// LoadPath loads a catalog from a file or from every .yaml/.yml/.json
// file under a directory (sorted by path, so merges are stable).
// Malformed files are skipped and reported as issues; the returned
// catalog holds everything that did load.
func LoadPath(path string) (*Catalog, []LoadIssue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat catalog path: %w", err)
	}

	if !info.IsDir() {
		cat, err := LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return cat, nil, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk catalog directory: %w", err)
	}
	sort.Strings(files)

	merged := &Catalog{}
	var issues []LoadIssue
	for _, f := range files {
		cat, err := LoadFile(f)
		if err != nil {
			issues = append(issues, LoadIssue{Path: f, Err: err})
			continue
		}
		merged.Merge(cat)
	}

	if err := merged.Validate(); err != nil {
		return nil, issues, err
	}
	return merged, issues, nil
}
