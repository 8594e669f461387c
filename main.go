// Package main is the entry point for the release-note CLI application.
// release-note summarises the commits between two revisions of a Git
// repository into a plain-text release note.
package main

import (
	"fmt"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/MyCarrier-DevOps/release-note/cmd"
	"github.com/MyCarrier-DevOps/release-note/internal/adapters/git"
	logadapter "github.com/MyCarrier-DevOps/release-note/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/release-note/internal/adapters/output"
	"github.com/MyCarrier-DevOps/release-note/internal/domain"
	"github.com/MyCarrier-DevOps/release-note/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/release-note/internal/usecases"
)

func main() {
	// Wire up production dependencies
	deps := &cmd.Dependencies{
		// The logger is built on demand so --verbose can raise LOG_LEVEL first.
		LoggerFactory: func() cmd.Logger {
			return logadapter.NewZapAdapter(logger.NewZapLoggerFromConfig()).
				With(map[string]any{"component": "release-note"})
		},

		ConfigLoader: config.Load,

		ProviderFactory: newScmProvider,

		NoteWriterFactory: newNoteWriter,

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}

// newScmProvider builds the SCM backend selected by the settings.
func newScmProvider(settings *config.Settings, log cmd.Logger) (domain.ScmProvider, error) {
	order, err := settings.Order()
	if err != nil {
		return nil, err
	}

	opts := git.Options{
		Order:       order,
		Credentials: git.Credentials(settings.Credentials),
	}

	switch settings.ScmBackend {
	case config.BackendGoGit:
		return git.NewGoGitProvider(opts, log), nil
	case config.BackendGitCLI:
		return git.NewCLIProvider(opts, log), nil
	default:
		return nil, newBackendError(settings.ScmBackend)
	}
}

func newNoteWriter(provider domain.ScmProvider, log cmd.Logger) domain.NoteWriter {
	return usecases.NewNoteGenerator(provider, output.NewFileTarget(), log)
}

func newBackendError(backend string) error {
	return fmt.Errorf("%w: %w", domain.ErrConfiguration, &backendError{backend: backend})
}

// backendError is returned when no SCM backend has the configured name.
type backendError struct {
	backend string
}

func (e *backendError) Error() string {
	return fmt.Sprintf("unknown SCM backend %q, expected %s or %s",
		e.backend, config.BackendGoGit, config.BackendGitCLI)
}
