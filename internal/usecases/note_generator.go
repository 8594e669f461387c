// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

// Text of the release note that is not derived from commits.
const (
	headerFormat  = "Release note for %s: "
	entryIndent   = "  "
	emptyNoteLine = entryIndent + "Nothing to say.."
)

// Logger defines the logging interface required by the note generator.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// NoteGenerator writes a release note summarising the change log between two revisions.
type NoteGenerator struct {
	provider domain.ScmProvider
	target   domain.OutputTarget
	logger   Logger
}

// NewNoteGenerator creates a new NoteGenerator with the given dependencies.
func NewNoteGenerator(
	provider domain.ScmProvider,
	target domain.OutputTarget,
	log Logger,
) *NoteGenerator {
	return &NoteGenerator{
		provider: provider,
		target:   target,
		logger:   log,
	}
}

// Header returns the first line of a release note for the given current version.
func Header(currentVersion string) string {
	return fmt.Sprintf(headerFormat, currentVersion)
}

// Generate validates cfg, prepares the output file and writes one summary line per
// change-set between cfg.Previous and cfg.Current.
//
// The configuration is validated before any I/O. Once the file exists, an SCM
// failure leaves the header in place. The output stream is closed on every path.
func (g *NoteGenerator) Generate(ctx context.Context, cfg domain.NoteConfig) (res *domain.NoteResult, err error) {
	revisions, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	g.logger.Info(ctx, "generating release note", map[string]interface{}{
		"output":     cfg.OutputPath,
		"previous":   revisions.Previous.String(),
		"current":    revisions.Current.String(),
		"line_limit": cfg.LineLimit,
		"scope":      cfg.Scope.Path,
	})

	out, err := g.target.Prepare(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	w := bufio.NewWriter(out)
	defer func() {
		flushErr := w.Flush()
		closeErr := out.Close()
		if err == nil {
			if ioErr := errors.Join(flushErr, closeErr); ioErr != nil {
				res = nil
				err = fmt.Errorf("%w: %w", domain.ErrIO, ioErr)
			}
		}
	}()

	header := Header(cfg.Current.ID)
	if err := writeLine(w, header); err != nil {
		return nil, err
	}

	changeLog, err := g.changeLog(ctx, cfg, revisions)
	if err != nil {
		return nil, err
	}

	entries, err := writeEntries(w, changeLog, cfg.LineLimit)
	if err != nil {
		return nil, err
	}

	g.logger.Info(ctx, "release note written", map[string]interface{}{
		"output":  cfg.OutputPath,
		"entries": entries,
	})

	return &domain.NoteResult{
		OutputPath: cfg.OutputPath,
		Header:     header,
		Entries:    entries,
	}, nil
}

// changeLog opens the repository and fetches the change log, releasing the
// repository handle before returning.
func (g *NoteGenerator) changeLog(
	ctx context.Context,
	cfg domain.NoteConfig,
	revisions domain.RevisionRange,
) (*domain.ChangeLog, error) {
	repo, err := g.provider.Open(ctx, cfg.ScmURL)
	if err != nil {
		g.logger.Error(ctx, "failed to open repository", err, map[string]interface{}{
			"scm_url": cfg.ScmURL,
		})
		return nil, scmError(err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			g.logger.Warn(ctx, "failed to close repository", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	changeLog, err := repo.ChangeLog(ctx, cfg.Scope, revisions.Previous, revisions.Current)
	if err != nil {
		g.logger.Error(ctx, "failed to read change log", err, map[string]interface{}{
			"previous": revisions.Previous.String(),
			"current":  revisions.Current.String(),
		})
		return nil, scmError(err)
	}

	if changeLog == nil {
		g.logger.Debug(ctx, "repository returned no change log", nil)
		return nil, nil
	}

	g.logger.Debug(ctx, "retrieved change log", map[string]interface{}{
		"change_sets": len(changeLog.ChangeSets),
	})
	return changeLog, nil
}

// writeEntries writes a summary line per change-set, or the empty-note line.
func writeEntries(w io.Writer, changeLog *domain.ChangeLog, lineLimit int) (int, error) {
	if changeLog.IsEmpty() {
		if _, err := io.WriteString(w, emptyNoteLine); err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrIO, err)
		}
		return 0, nil
	}

	for _, cs := range changeLog.ChangeSets {
		if err := writeLine(w, entryIndent+Summarize(cs.Comment, lineLimit)); err != nil {
			return 0, err
		}
	}
	return len(changeLog.ChangeSets), nil
}

func writeLine(w io.Writer, line string) error {
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}

// scmError reports an adapter failure under the single SCM category.
func scmError(err error) error {
	if errors.Is(err, domain.ErrSCM) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSCM, err)
}
