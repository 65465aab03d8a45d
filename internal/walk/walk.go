// Package walk enumerates the files and directories of a scan root whose
// immediate subdirectories are independent repositories.
package walk

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
)

// Walker enumerates a scan root. Both sequences are lazy and restartable:
// ranging over them again repeats the traversal.
type Walker struct {
	root    string
	exclude map[string]bool
}

// New returns a Walker over root. Directories whose base name is in
// exclude are skipped together with their subtree.
func New(root string, exclude ...string) *Walker {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &Walker{root: filepath.Clean(root), exclude: ex}
}

// Root returns the cleaned scan root.
func (w *Walker) Root() string { return w.root }

// Files yields every regular file under any repository directory. Files
// directly in the root belong to no repository and are not yielded.
// Unreadable subtrees are skipped.
func (w *Walker) Files() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, repo := range w.Repos() {
			stop := false
			_ = filepath.WalkDir(repo, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if d != nil && d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					if path != repo && w.exclude[d.Name()] {
						return filepath.SkipDir
					}
					return nil
				}
				if !d.Type().IsRegular() {
					return nil
				}
				if !yield(path) {
					stop = true
					return filepath.SkipAll
				}
				return nil
			})
			if stop {
				return
			}
		}
	}
}

// DirsBottomUp yields every directory under the root, deepest first: a
// directory is yielded only after all of its descendant directories. The
// root itself is not yielded.
func (w *Walker) DirsBottomUp() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, repo := range w.Repos() {
			if !w.postOrder(repo, yield) {
				return
			}
		}
	}
}

// postOrder visits subdirectories of dir in name order, then dir. It
// reports false when the consumer stopped.
func (w *Walker) postOrder(dir string, yield func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() || w.exclude[e.Name()] {
				continue
			}
			if !w.postOrder(filepath.Join(dir, e.Name()), yield) {
				return false
			}
		}
	}
	return yield(dir)
}

// Repos lists the repository directories directly under the root.
func (w *Walker) Repos() []string {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !w.exclude[e.Name()] {
			out = append(out, filepath.Join(w.root, e.Name()))
		}
	}
	slices.Sort(out)
	return out
}

// RepoOf returns the repository directory name that owns path, or false
// when path is not inside a repository under root.
func RepoOf(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return "", false
	}
	first, _, _ := cutSeparator(rel)
	return first, true
}

// IsRepoDir reports whether dir is a repository directory, i.e. a direct
// child of root.
func IsRepoDir(root, dir string) bool {
	return filepath.Dir(filepath.Clean(dir)) == filepath.Clean(root)
}

func cutSeparator(rel string) (string, string, bool) {
	for i := 0; i < len(rel); i++ {
		if os.IsPathSeparator(rel[i]) {
			return rel[:i], rel[i+1:], true
		}
	}
	return rel, "", false
}
