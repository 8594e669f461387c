package domain

import (
	"fmt"
	"strings"
)

// RevisionKind discriminates the three revision variants.
type RevisionKind int

const (
	KindTag RevisionKind = iota + 1
	KindBranch
	KindRevision
)

// String returns the kind as spelled in configuration.
func (k RevisionKind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindBranch:
		return "branch"
	case KindRevision:
		return "revision"
	default:
		return "unknown"
	}
}

// Revision is a typed reference into source-control history: a tag, a branch
// or a raw revision. The zero value is not a valid revision.
type Revision struct {
	kind RevisionKind
	id   string
}

// NewRevision builds a revision of the given kind. The identifier must be non-empty.
func NewRevision(kind RevisionKind, id string) (Revision, error) {
	switch kind {
	case KindTag, KindBranch, KindRevision:
	default:
		return Revision{}, &InvalidKindError{Kind: kind.String()}
	}
	if id == "" {
		return Revision{}, fmt.Errorf("%w: %s", ErrEmptyRevision, kind)
	}
	return Revision{kind: kind, id: id}, nil
}

// Kind returns the variant of the revision.
func (r Revision) Kind() RevisionKind {
	return r.kind
}

// ID returns the identifier exactly as supplied.
func (r Revision) ID() string {
	return r.id
}

// IsZero reports whether r was never constructed.
func (r Revision) IsZero() bool {
	return r.kind == 0
}

// String renders the revision as kind:id for logs.
func (r Revision) String() string {
	return r.kind.String() + ":" + r.id
}

// ResolveRevision converts a (kind, identifier) pair supplied by the caller into a
// typed revision. kind is matched case-insensitively against tag, branch and revision.
func ResolveRevision(kind, id string) (Revision, error) {
	var k RevisionKind
	switch {
	case strings.EqualFold(kind, "tag"):
		k = KindTag
	case strings.EqualFold(kind, "branch"):
		k = KindBranch
	case strings.EqualFold(kind, "revision"):
		k = KindRevision
	default:
		return Revision{}, &InvalidKindError{Kind: kind}
	}
	return NewRevision(k, id)
}

// InvalidKindError is returned when a revision kind is not recognized.
type InvalidKindError struct {
	// Kind is the offending kind string.
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("revision kind %q not recognized, only tag, branch and revision", e.Kind)
}

// Unwrap allows errors.Is(err, ErrInvalidKind) and errors.Is(err, ErrConfiguration).
func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}
