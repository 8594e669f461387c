// Package domain defines the core business entities and interfaces for release-note.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for a note configuration.
const (
	// DefaultLineLimit bounds the visible width of each summary line.
	DefaultLineLimit = 80

	// DefaultOutputFilename is used when no output path is configured.
	DefaultOutputFilename = "build/release-note.txt"

	// DefaultScopePath restricts the change log to the invocation directory.
	DefaultScopePath = "."
)

// Configuration field names as the host knows them. Used in error messages.
const (
	FieldOutputFilename      = "outputFilename"
	FieldScmConnectionURL    = "scmConnectionUrl"
	FieldPreviousVersion     = "previousVersion"
	FieldPreviousVersionType = "previousVersionType"
	FieldCurrentVersion      = "currentVersion"
	FieldCurrentVersionType  = "currentVersionType"
	FieldLogLineLimit        = "logLineLimit"
)

// VersionSpec is a revision as supplied by the caller, before resolution.
type VersionSpec struct {
	// Kind is one of tag, branch or revision, compared case-insensitively.
	Kind string

	// ID is the tag name, branch name or revision identifier.
	ID string
}

// FileScope restricts a change log to commits touching a part of the tree.
type FileScope struct {
	// Path is relative to the directory the repository was opened from.
	// "." (or empty) selects that whole directory.
	Path string

	// Include holds doublestar globs over repository-relative paths.
	// When empty every path under Path is included.
	Include []string

	// Exclude holds doublestar globs over repository-relative paths.
	Exclude []string
}

// IsWhole reports whether the scope places no restriction on paths.
func (s FileScope) IsWhole() bool {
	p := strings.TrimSpace(s.Path)
	return (p == "" || p == ".") && len(s.Include) == 0 && len(s.Exclude) == 0
}

// DefaultFileScope returns the scope used by the core: the invocation directory.
func DefaultFileScope() FileScope {
	return FileScope{Path: DefaultScopePath}
}

// NoteConfig holds the inputs of one release note generation.
type NoteConfig struct {
	OutputPath string
	ScmURL     string
	Previous   VersionSpec
	Current    VersionSpec
	LineLimit  int
	Scope      FileScope
}

// RevisionRange is the pair of resolved revisions a note is generated for.
type RevisionRange struct {
	Previous Revision
	Current  Revision
}

// Validate checks required fields and resolves both revisions.
// It performs no I/O; every failure satisfies errors.Is(err, ErrConfiguration).
func (c NoteConfig) Validate() (RevisionRange, error) {
	required := []struct {
		field string
		value string
	}{
		{FieldOutputFilename, c.OutputPath},
		{FieldScmConnectionURL, c.ScmURL},
		{FieldPreviousVersion, c.Previous.ID},
		{FieldPreviousVersionType, c.Previous.Kind},
		{FieldCurrentVersion, c.Current.ID},
		{FieldCurrentVersionType, c.Current.Kind},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return RevisionRange{}, fmt.Errorf("%w: %s", ErrMissingField, r.field)
		}
	}

	if c.LineLimit <= 0 {
		return RevisionRange{}, fmt.Errorf("%w: %s=%d", ErrInvalidLineLimit, FieldLogLineLimit, c.LineLimit)
	}

	previous, err := ResolveRevision(c.Previous.Kind, c.Previous.ID)
	if err != nil {
		return RevisionRange{}, fmt.Errorf("%s: %w", FieldPreviousVersionType, err)
	}

	current, err := ResolveRevision(c.Current.Kind, c.Current.ID)
	if err != nil {
		return RevisionRange{}, fmt.Errorf("%s: %w", FieldCurrentVersionType, err)
	}

	return RevisionRange{Previous: previous, Current: current}, nil
}

// ChangeSet is a single commit in the source-control history.
// Only Comment is consumed by the note writer; the rest is pass-through data.
type ChangeSet struct {
	Author    string
	Timestamp time.Time
	Comment   string
	Revision  string
}

// ChangeLog is the ordered sequence of change-sets between two revisions.
type ChangeLog struct {
	ChangeSets []ChangeSet
}

// IsEmpty reports whether the change log is absent or has no change-sets.
func (l *ChangeLog) IsEmpty() bool {
	return l == nil || len(l.ChangeSets) == 0
}

// HistoryOrder controls the order in which adapters deliver change-sets.
type HistoryOrder int

const (
	// OldestFirst delivers the earliest commit first.
	OldestFirst HistoryOrder = iota
	// NewestFirst delivers commits in the SCM's native log order.
	NewestFirst
)

// String returns the configuration spelling of the order.
func (o HistoryOrder) String() string {
	switch o {
	case OldestFirst:
		return "oldest-first"
	case NewestFirst:
		return "newest-first"
	default:
		return "unknown"
	}
}

// ParseHistoryOrder parses "oldest-first" or "newest-first" (case-insensitive).
func ParseHistoryOrder(s string) (HistoryOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "oldest-first":
		return OldestFirst, nil
	case "newest-first":
		return NewestFirst, nil
	default:
		return OldestFirst, fmt.Errorf("%w: history order %q, only oldest-first and newest-first", ErrConfiguration, s)
	}
}

// NoteResult describes a successfully written release note.
type NoteResult struct {
	// OutputPath is the file the note was written to.
	OutputPath string

	// Header is the first line of the note, without its line break.
	Header string

	// Entries is the number of summary lines written.
	Entries int
}
