package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

// Formats for git log output. Records start with 0x1e (record separator) and
// fields are NUL separated, so commit messages never need escaping.
const (
	changeSetFormat = "%x1e%H%x00%an%x00%aI%x00%B"
	changedFormat   = "%x1e%H%n"
)

// CLIProvider opens repositories through the git executable.
// It honours the user's git configuration, credential helpers included.
type CLIProvider struct {
	opts   Options
	logger Logger
	binary string
}

// NewCLIProvider creates a provider that shells out to git found on PATH.
func NewCLIProvider(opts Options, log Logger) *CLIProvider {
	return &CLIProvider{opts: opts, logger: log, binary: "git"}
}

// Open resolves connectionURL to a repository. Remote locations are cloned bare
// into a temporary directory that Close removes.
func (p *CLIProvider) Open(ctx context.Context, connectionURL string) (domain.Repository, error) {
	u, err := ParseConnectionURL(connectionURL)
	if err != nil {
		return nil, err
	}

	if _, err := exec.LookPath(p.binary); err != nil {
		return nil, fmt.Errorf("git executable not found: %w", err)
	}

	if u.Local {
		return p.openLocal(ctx, u)
	}
	return p.cloneRemote(ctx, u)
}

func (p *CLIProvider) newRepository() *CLIRepository {
	return &CLIRepository{
		binary: p.binary,
		order:  p.opts.Order,
		logger: p.logger,
	}
}

func (p *CLIProvider) openLocal(ctx context.Context, u ConnectionURL) (*CLIRepository, error) {
	repo := p.newRepository()
	if _, err := repo.git(ctx, u.Location, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRepositoryNotFound, u.Location, err)
	}
	repo.dir = u.Location
	if out, err := repo.git(ctx, u.Location, "rev-parse", "--show-prefix"); err == nil {
		repo.subdir = strings.TrimSuffix(strings.TrimSpace(string(out)), "/")
	}

	p.logger.Debug(ctx, "opened local repository", map[string]interface{}{
		"path":       u.Location,
		"repository": u.RepositoryName(),
		"subdir":     repo.subdir,
	})
	return repo, nil
}

func (p *CLIProvider) cloneRemote(ctx context.Context, u ConnectionURL) (*CLIRepository, error) {
	if !p.opts.Credentials.IsZero() {
		p.logger.Warn(ctx, "configured credentials are ignored by the git CLI backend", map[string]interface{}{
			"url": u.Location,
		})
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

	repo := p.newRepository()
	if _, err := repo.git(ctx, "", "clone", "--quiet", "--bare", "--", u.Location, dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: failed to clone %s: %w", domain.ErrRepositoryNotFound, u.Location, err)
	}
	repo.dir = dir
	repo.cloneDir = dir
	return repo, nil
}

// CLIRepository implements domain.Repository by running git log.
type CLIRepository struct {
	binary   string
	dir      string
	subdir   string
	cloneDir string
	order    domain.HistoryOrder
	logger   Logger
}

// ChangeLog returns the commits in from..to that touch a file in scope.
func (r *CLIRepository) ChangeLog(
	ctx context.Context,
	scope domain.FileScope,
	from, to domain.Revision,
) (*domain.ChangeLog, error) {
	fromSHA, err := r.resolve(ctx, from)
	if err != nil {
		return nil, err
	}
	toSHA, err := r.resolve(ctx, to)
	if err != nil {
		return nil, err
	}
	rangeSpec := fromSHA + ".." + toSHA

	args := []string{"log", "--no-color", "--format=" + changeSetFormat}
	if r.order == domain.OldestFirst {
		args = append(args, "--reverse")
	}
	args = append(args, rangeSpec)

	out, err := r.git(ctx, r.dir, args...)
	if err != nil {
		return nil, err
	}
	changeSets, err := parseChangeSets(out)
	if err != nil {
		return nil, err
	}

	matcher := newScopeMatcher(r.subdir, scope)
	if !matcher.whole() {
		inScope, err := r.commitsInScope(ctx, rangeSpec, matcher)
		if err != nil {
			return nil, err
		}
		kept := changeSets[:0]
		for _, cs := range changeSets {
			if inScope[cs.Revision] {
				kept = append(kept, cs)
			}
		}
		changeSets = kept
	}

	r.logger.Debug(ctx, "read change log", map[string]interface{}{
		"path":          r.dir,
		"range":         rangeSpec,
		"change_sets":   len(changeSets),
		"scope_prefix":  matcher.prefix,
		"history_order": r.order.String(),
	})

	return &domain.ChangeLog{ChangeSets: changeSets}, nil
}

// Close removes the temporary clone, if any.
func (r *CLIRepository) Close() error {
	if r.cloneDir == "" {
		return nil
	}
	if err := os.RemoveAll(r.cloneDir); err != nil {
		return fmt.Errorf("failed to remove clone %s: %w", r.cloneDir, err)
	}
	return nil
}

// commitsInScope lists the files each commit in rangeSpec changed and keeps the
// commits touching a file in scope. Merges are compared to their first parent.
func (r *CLIRepository) commitsInScope(
	ctx context.Context,
	rangeSpec string,
	matcher *scopeMatcher,
) (map[string]bool, error) {
	out, err := r.git(ctx, r.dir,
		"-c", "core.quotePath=false",
		"log", "--no-color", "--format="+changedFormat,
		"--name-only", "-z", "--diff-merges=first-parent",
		rangeSpec,
	)
	if err != nil {
		return nil, err
	}

	inScope := make(map[string]bool)
	for sha, files := range parseChangedFiles(out) {
		if matcher.matchAny(files...) {
			inScope[sha] = true
		}
	}
	return inScope, nil
}

// resolve maps a revision to a full commit SHA.
func (r *CLIRepository) resolve(ctx context.Context, rev domain.Revision) (string, error) {
	id := rev.ID()
	if strings.HasPrefix(id, "-") {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownRevision, rev)
	}

	var candidates []string
	switch rev.Kind() {
	case domain.KindTag:
		candidates = []string{"refs/tags/" + id}
	case domain.KindBranch:
		candidates = []string{"refs/heads/" + id, "refs/remotes/origin/" + id}
	default:
		candidates = []string{id}
	}

	for _, candidate := range candidates {
		out, err := r.git(ctx, r.dir, "rev-parse", "--verify", "--quiet", candidate+"^{commit}")
		if err == nil {
			return strings.TrimSpace(string(out)), nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnknownRevision, rev)
}

// git runs the git executable in dir and returns its standard output.
func (r *CLIRepository) git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w: %s", subcommand(args), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// subcommand returns the first argument that is not a global option.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-C", "-c":
			i++
		default:
			return args[i]
		}
	}
	return ""
}

// parseChangeSets parses git log output produced with changeSetFormat.
func parseChangeSets(out []byte) ([]domain.ChangeSet, error) {
	records := bytes.Split(out, []byte{0x1e})
	changeSets := make([]domain.ChangeSet, 0, len(records))

	for _, rec := range records {
		if len(bytes.TrimSpace(rec)) == 0 {
			continue
		}

		fields := bytes.SplitN(rec, []byte{0x00}, 4)
		if len(fields) < 4 {
			return nil, fmt.Errorf("unexpected git log record format")
		}

		when, err := time.Parse(time.RFC3339, string(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("parse author date: %w", err)
		}

		changeSets = append(changeSets, domain.ChangeSet{
			Revision:  string(fields[0]),
			Author:    string(fields[1]),
			Timestamp: when,
			Comment:   strings.TrimRight(string(fields[3]), "\n"),
		})
	}
	return changeSets, nil
}

// parseChangedFiles parses git log --name-only -z output produced with
// changedFormat into the files changed per commit.
func parseChangedFiles(out []byte) map[string][]string {
	changed := make(map[string][]string)
	for _, rec := range bytes.Split(out, []byte{0x1e}) {
		header, body := splitHeaderBody(rec)
		sha := string(bytes.TrimSpace(header))
		if sha == "" {
			continue
		}

		files := []string{}
		for _, name := range bytes.Split(body, []byte{0x00}) {
			name = bytes.Trim(name, "\n")
			if len(name) > 0 {
				files = append(files, string(name))
			}
		}
		changed[sha] = files
	}
	return changed
}

func splitHeaderBody(rec []byte) (header []byte, body []byte) {
	// The pretty line is followed by '\n', then the file list.
	if idx := bytes.IndexByte(rec, '\n'); idx != -1 {
		return rec[:idx], rec[idx+1:]
	}
	return rec, nil
}
