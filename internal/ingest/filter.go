package ingest

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/household-docs/constants"
)

// supported reports whether path carries one of the accepted upload extensions.
func supported(path string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// hiddenBelow reports whether any element of path below root starts with
// a dot. The root itself is never hidden, so a watch root may live under
// a dot directory.
func hiddenBelow(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// walkFilter selects ingest candidates while walking one root.
type walkFilter struct {
	root       string
	skipHidden bool
}

// step classifies a walked entry. It returns filepath.SkipDir for hidden
// directories and true only for regular files worth processing.
func (f walkFilter) step(path string, d fs.DirEntry) (bool, error) {
	if f.skipHidden && hiddenBelow(f.root, path) {
		if d.IsDir() {
			return false, filepath.SkipDir
		}
		return false, nil
	}
	return !d.IsDir() && supported(path), nil
}
