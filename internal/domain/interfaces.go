// Package domain defines the core business entities and interfaces for release-note.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Error categories surfaced to the host. Every error returned by the note
// generator satisfies errors.Is for exactly one of ErrConfiguration, ErrIO or ErrSCM.
var (
	// ErrConfiguration indicates a missing or invalid input. Raised before any I/O.
	ErrConfiguration = errors.New("configuration error")

	// ErrIO indicates a failure to prepare, write or close the output file.
	ErrIO = errors.New("output file error")

	// ErrSCM indicates a failure reported by the SCM adapter.
	ErrSCM = errors.New("problem with SCM")
)

// Configuration errors.
var (
	// ErrInvalidKind indicates a revision kind outside tag, branch and revision.
	ErrInvalidKind = fmt.Errorf("%w: revision kind not recognized", ErrConfiguration)

	// ErrEmptyRevision indicates a revision identifier was empty.
	ErrEmptyRevision = fmt.Errorf("%w: revision identifier is empty", ErrConfiguration)

	// ErrMissingField indicates a required configuration field was not supplied.
	ErrMissingField = fmt.Errorf("%w: required field missing", ErrConfiguration)

	// ErrInvalidLineLimit indicates a non-positive line limit.
	ErrInvalidLineLimit = fmt.Errorf("%w: line limit must be positive", ErrConfiguration)
)

// SCM adapter errors. All of them are reported under the single ErrSCM category.
var (
	// ErrMalformedURL indicates the SCM connection URL could not be parsed.
	ErrMalformedURL = fmt.Errorf("%w: malformed SCM connection URL", ErrSCM)

	// ErrUnsupportedProvider indicates the connection URL names a non-git SCM.
	ErrUnsupportedProvider = fmt.Errorf("%w: unsupported SCM provider", ErrSCM)

	// ErrRepositoryNotFound indicates the location is not a valid Git repository.
	ErrRepositoryNotFound = fmt.Errorf("%w: git repository not found", ErrSCM)

	// ErrUnknownRevision indicates a tag, branch or revision could not be resolved.
	ErrUnknownRevision = fmt.Errorf("%w: unknown revision", ErrSCM)
)

// ScmProvider opens repositories from SCM connection URLs.
type ScmProvider interface {
	// Open validates and prepares the repository referenced by connectionURL.
	// It may perform network I/O (clone, fetch).
	Open(ctx context.Context, connectionURL string) (Repository, error)
}

// Repository is the handle produced by a ScmProvider. Its lifetime is one invocation.
type Repository interface {
	// ChangeLog returns the change-sets strictly after from and up to and including to,
	// restricted to the given scope. A nil ChangeLog with a nil error means no data.
	ChangeLog(ctx context.Context, scope FileScope, from, to Revision) (*ChangeLog, error)

	// Close releases any resources held by the repository (temporary clones, processes).
	Close() error
}

// OutputTarget prepares the destination of a release note.
type OutputTarget interface {
	// Prepare removes any existing file at path, creates missing parent
	// directories and returns a writable stream to a new empty file.
	Prepare(path string) (io.WriteCloser, error)
}

// NoteWriter generates release notes.
type NoteWriter interface {
	// Generate writes the release note described by cfg.
	Generate(ctx context.Context, cfg NoteConfig) (*NoteResult, error)
}
