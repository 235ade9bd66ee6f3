package analysis

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"ppde/internal/paths"
)

// WalkPython returns the repo-relative, slash-separated paths of Python
// files under root in lexical order. Hidden directories, virtualenvs,
// bytecode caches and anything matching an ignore pattern are skipped.
// Patterns are matched against both the relative path and the base name.
func WalkPython(root string, ignore []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (paths.IsSkippedDir(d.Name()) || ignored(rel, ignore)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if path.Ext(rel) != ".py" {
			return nil
		}
		if ignored(rel, ignore) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func ignored(rel string, patterns []string) bool {
	base := path.Base(rel)
	for _, pattern := range patterns {
		if pattern == rel || pattern == base {
			return true
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
