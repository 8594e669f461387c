// Package git provides adapters for reading change logs out of Git repositories.
// This package implements domain.ScmProvider and domain.Repository twice: with
// go-git/v5 (the default) and with the git command line.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// cloneDirPattern names the temporary directories remote repositories are cloned into.
const cloneDirPattern = "release-note-clone-*"

// Options configure both providers.
type Options struct {
	// Order is the order change-sets are returned in.
	Order domain.HistoryOrder

	// Credentials authenticate HTTP(S) clones. Used by the go-git provider only;
	// the git CLI relies on its own credential helpers.
	Credentials Credentials
}

// GoGitProvider opens repositories with go-git.
type GoGitProvider struct {
	opts   Options
	logger Logger
}

// NewGoGitProvider creates a provider backed by go-git.
func NewGoGitProvider(opts Options, log Logger) *GoGitProvider {
	return &GoGitProvider{opts: opts, logger: log}
}

// Open resolves connectionURL to a repository. Local locations are opened in
// place (a path inside a worktree finds the enclosing repository). Remote
// locations are cloned bare into a temporary directory that Close removes.
func (p *GoGitProvider) Open(ctx context.Context, connectionURL string) (domain.Repository, error) {
	u, err := ParseConnectionURL(connectionURL)
	if err != nil {
		return nil, err
	}

	if u.Local {
		return p.openLocal(ctx, u)
	}
	return p.cloneRemote(ctx, u)
}

func (p *GoGitProvider) openLocal(ctx context.Context, u ConnectionURL) (*GoGitRepository, error) {
	repo, err := git.PlainOpenWithOptions(u.Location, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRepositoryNotFound, u.Location, err)
	}

	subdir := ""
	if wt, wtErr := repo.Worktree(); wtErr == nil {
		subdir = relativeSubdir(wt.Filesystem.Root(), u.Location)
	}

	p.logger.Debug(ctx, "opened local repository", map[string]interface{}{
		"path":       u.Location,
		"repository": u.RepositoryName(),
		"subdir":     subdir,
	})

	return &GoGitRepository{
		repo:   repo,
		path:   u.Location,
		subdir: subdir,
		order:  p.opts.Order,
		logger: p.logger,
	}, nil
}

func (p *GoGitProvider) cloneRemote(ctx context.Context, u ConnectionURL) (*GoGitRepository, error) {
	auth, err := authForURL(u.Location, p.opts.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to set up authentication for %s: %w", u.Location, err)
	}

	dir, err := os.MkdirTemp("", cloneDirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}

	p.logger.Debug(ctx, "cloning remote repository", map[string]interface{}{
		"url":        u.Location,
		"repository": u.RepositoryName(),
		"dir":        dir,
	})

	repo, err := git.PlainCloneContext(ctx, dir, true, &git.CloneOptions{
		URL:  u.Location,
		Auth: auth,
		Tags: git.AllTags,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: failed to clone %s: %w", domain.ErrRepositoryNotFound, u.Location, err)
	}

	return &GoGitRepository{
		repo:     repo,
		path:     dir,
		cloneDir: dir,
		order:    p.opts.Order,
		logger:   p.logger,
	}, nil
}

// GoGitRepository implements domain.Repository using go-git/v5.
type GoGitRepository struct {
	repo *git.Repository
	path string

	// subdir is the opened directory relative to the worktree root, slash separated.
	subdir string

	// cloneDir is set for temporary clones and removed on Close.
	cloneDir string

	order  domain.HistoryOrder
	logger Logger
}

// ChangeLog returns the commits reachable from to but not from from, restricted
// to commits that touch a file in scope.
func (r *GoGitRepository) ChangeLog(
	ctx context.Context,
	scope domain.FileScope,
	from, to domain.Revision,
) (*domain.ChangeLog, error) {
	fromCommit, err := r.resolve(from)
	if err != nil {
		return nil, err
	}
	toCommit, err := r.resolve(to)
	if err != nil {
		return nil, err
	}

	excluded, err := ancestors(ctx, fromCommit)
	if err != nil {
		return nil, err
	}

	matcher := newScopeMatcher(r.subdir, scope)
	changeLog := &domain.ChangeLog{}
	skipped := 0

	// Newest first by committer time.
	iter := object.NewCommitIterCTime(toCommit, excluded, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !matcher.whole() {
			touches, err := touchesScope(ctx, c, matcher)
			if err != nil {
				return err
			}
			if !touches {
				skipped++
				return nil
			}
		}

		changeLog.ChangeSets = append(changeLog.ChangeSets, domain.ChangeSet{
			Author:    c.Author.Name,
			Timestamp: c.Author.When,
			Comment:   c.Message,
			Revision:  c.Hash.String(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("failed to walk commit history: %w", err)
	}

	if r.order == domain.OldestFirst {
		slices.Reverse(changeLog.ChangeSets)
	}

	r.logger.Debug(ctx, "walked change log", map[string]interface{}{
		"path":          r.path,
		"from":          from.String(),
		"to":            to.String(),
		"change_sets":   len(changeLog.ChangeSets),
		"out_of_scope":  skipped,
		"scope_prefix":  matcher.prefix,
		"history_order": r.order.String(),
	})

	return changeLog, nil
}

// Close removes the temporary clone, if any.
func (r *GoGitRepository) Close() error {
	if r.cloneDir == "" {
		return nil
	}
	if err := os.RemoveAll(r.cloneDir); err != nil {
		return fmt.Errorf("failed to remove clone %s: %w", r.cloneDir, err)
	}
	return nil
}

// resolve maps a revision to the commit it names.
func (r *GoGitRepository) resolve(rev domain.Revision) (*object.Commit, error) {
	var (
		commit *object.Commit
		err    error
	)
	switch rev.Kind() {
	case domain.KindTag:
		commit, err = r.tagCommit(rev.ID())
	case domain.KindBranch:
		commit, err = r.branchCommit(rev.ID())
	case domain.KindRevision:
		commit, err = r.revisionCommit(rev.ID())
	default:
		err = fmt.Errorf("unsupported revision kind %s", rev.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUnknownRevision, rev, err)
	}
	return commit, nil
}

// tagCommit peels lightweight and annotated tags to their commit.
func (r *GoGitRepository) tagCommit(name string) (*object.Commit, error) {
	ref, err := r.repo.Tag(name)
	if err != nil {
		return nil, err
	}

	tag, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		return tag.Commit()
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return r.repo.CommitObject(ref.Hash())
	default:
		return nil, err
	}
}

// branchCommit looks for a local branch first and falls back to origin's.
func (r *GoGitRepository) branchCommit(name string) (*object.Commit, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName("origin", name),
	}
	for _, refName := range candidates {
		ref, err := r.repo.Reference(refName, true)
		if err == nil {
			return r.repo.CommitObject(ref.Hash())
		}
	}
	return nil, plumbing.ErrReferenceNotFound
}

func (r *GoGitRepository) revisionCommit(id string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(id))
	if err != nil {
		return nil, err
	}
	return r.repo.CommitObject(*hash)
}

// ancestors returns the set of commits reachable from c, c included.
func ancestors(ctx context.Context, c *object.Commit) (map[plumbing.Hash]bool, error) {
	seen := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(c, nil, nil)
	err := iter.ForEach(func(a *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[a.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk ancestors of %s: %w", c.Hash, err)
	}
	return seen, nil
}

// touchesScope reports whether c changed a file in scope, compared to its first
// parent. A root commit is compared to the empty tree.
func touchesScope(ctx context.Context, c *object.Commit, matcher *scopeMatcher) (bool, error) {
	tree, err := c.Tree()
	if err != nil {
		return false, fmt.Errorf("failed to get tree for %s: %w", c.Hash, err)
	}

	if c.NumParents() == 0 {
		found := false
		err := tree.Files().ForEach(func(f *object.File) error {
			if matcher.match(f.Name) {
				found = true
				return storer.ErrStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, storer.ErrStop) {
			return false, fmt.Errorf("failed to list files of %s: %w", c.Hash, err)
		}
		return found, nil
	}

	parent, err := c.Parent(0)
	if err != nil {
		return false, fmt.Errorf("failed to get parent of %s: %w", c.Hash, err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return false, fmt.Errorf("failed to get tree for %s: %w", parent.Hash, err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, nil)
	if err != nil {
		return false, fmt.Errorf("failed to diff %s: %w", c.Hash, err)
	}
	for _, change := range changes {
		if matcher.matchAny(change.From.Name, change.To.Name) {
			return true, nil
		}
	}
	return false, nil
}

// relativeSubdir returns location relative to root, slash separated, or "" when
// location is the root itself or cannot be related to it.
func relativeSubdir(root, location string) string {
	abs, err := filepath.Abs(location)
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}
