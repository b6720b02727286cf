package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Walk limits for the orientation stage.
const (
	// MaxWalkFiles caps how many files orientation enumerates.
	MaxWalkFiles = 200

	// MaxWalkDepth caps directory depth below the root.
	MaxWalkDepth = 4

	// MaxFileChars truncates file content handed to extraction.
	MaxFileChars = 15000
)

// excludedDirs are skipped entirely during the tree walk.
var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".hg":          true,
	".svn":         true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"target":       true,
	"vendor":       true,
	"__pycache__":  true,
	".next":        true,
	".venv":        true,
}

// FileReader is the capability discovery uses to inspect a source tree.
// It is an interface so extraction is testable without a real checkout.
type FileReader interface {
	// ReadFile returns the content of one file, relative to the tree root.
	ReadFile(path string) (string, error)

	// ListTree enumerates files under the root, bounded by MaxWalkFiles
	// and MaxWalkDepth, excluding dependency and VCS directories.
	ListTree() ([]string, error)
}

// OSFileReader reads a tree rooted at a local directory.
type OSFileReader struct {
	Root string
}

// NewOSFileReader creates a reader over a local directory.
func NewOSFileReader(root string) *OSFileReader {
	return &OSFileReader{Root: root}
}

// ReadFile implements FileReader.
func (r *OSFileReader) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Root, path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListTree implements FileReader.
func (r *OSFileReader) ListTree() ([]string, error) {
	var paths []string

	err := filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(r.Root, path)
		if relErr != nil || rel == "." {
			return nil
		}

		depth := strings.Count(rel, string(filepath.Separator))

		if d.IsDir() {
			if excludedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
				return filepath.SkipDir
			}
			if depth >= MaxWalkDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if len(paths) >= MaxWalkFiles {
			return filepath.SkipAll
		}

		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}

// Truncate clips content to MaxFileChars with an explicit ellipsis marker
// so the model knows the file continues.
func Truncate(content string) string {
	if len(content) <= MaxFileChars {
		return content
	}
	return content[:MaxFileChars] + "\n... [truncated]"
}
