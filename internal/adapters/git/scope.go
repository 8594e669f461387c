package git

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

// scopeMatcher decides whether a repository-relative file path is in scope.
// A path is in scope when it lies under prefix, matches at least one include
// pattern (if any) and matches no exclude pattern.
type scopeMatcher struct {
	prefix  string
	include []string
	exclude []string
}

// newScopeMatcher builds a matcher for scope. subdir is the directory the
// repository was opened from, relative to the worktree root, and scope.Path is
// resolved against it.
func newScopeMatcher(subdir string, scope domain.FileScope) *scopeMatcher {
	prefix := path.Clean(filepath.ToSlash(filepath.Join(subdir, scope.Path)))
	if prefix == "." || prefix == "/" {
		prefix = ""
	}
	return &scopeMatcher{
		prefix:  strings.TrimPrefix(prefix, "/"),
		include: scope.Include,
		exclude: scope.Exclude,
	}
}

// whole reports whether every path matches, so no filtering is needed.
func (m *scopeMatcher) whole() bool {
	return m.prefix == "" && len(m.include) == 0 && len(m.exclude) == 0
}

func (m *scopeMatcher) match(name string) bool {
	name = filepath.ToSlash(name)

	if m.prefix != "" && name != m.prefix && !strings.HasPrefix(name, m.prefix+"/") {
		return false
	}

	for _, pattern := range m.exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return false
		}
	}

	if len(m.include) == 0 {
		return true
	}
	for _, pattern := range m.include {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// matchAny reports whether any of names is in scope.
func (m *scopeMatcher) matchAny(names ...string) bool {
	for _, name := range names {
		if name != "" && m.match(name) {
			return true
		}
	}
	return false
}
