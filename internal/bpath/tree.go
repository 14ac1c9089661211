package bpath

import (
	"os"
	"path/filepath"
)

// FilesRecursivelyIn lists every regular file under the source directory
// dir (relative to the workspace root), returned as Source paths. Used by
// graph.FilesRecursivelyIn to materialize a transitive file dependency
// over a subtree.
func FilesRecursivelyIn(root string, dir P) ([]P, error) {
	base := filepath.Join(root, dir.String())
	var out []P
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, Source(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
