// Package cmd provides the CLI commands for release-note.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
	"github.com/MyCarrier-DevOps/release-note/internal/infrastructure/config"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance. It is called after --verbose
	// has been applied to the environment.
	LoggerFactory func() Logger

	// ConfigLoader loads application settings.
	ConfigLoader func(ctx context.Context, opts config.LoadOptions) (*config.Settings, error)

	// ProviderFactory creates the SCM provider selected by the settings.
	ProviderFactory func(settings *config.Settings, log Logger) (domain.ScmProvider, error)

	// NoteWriterFactory creates the NoteWriter that generates the release note.
	NoteWriterFactory func(provider domain.ScmProvider, log Logger) domain.NoteWriter

	// Stdout is the writer for standard output (for the success line).
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// rootFlags holds the command-line flags of one command instance.
type rootFlags struct {
	configPath   string
	output       string
	scmURL       string
	previous     string
	previousType string
	current      string
	currentType  string
	lineLimit    int
	scopePath    string
	include      []string
	exclude      []string
	backend      string
	order        string
	verbose      bool
}

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for release-note.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	f := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "release-note",
		Short: "Write a release note from the commits between two revisions",
		Long: `release-note summarises the commits between a previous and a current
revision of a Git repository into a plain-text release note.

Each commit contributes one line: the first line of its message, cut to the
line limit with a trailing "..." when it is longer. Revisions are named by a
type (tag, branch or revision) and an identifier.

Settings are read from .release-note.yml (or --config), then RELEASE_NOTE_*
environment variables, then flags.

Examples:
  # Notes for everything between two tags of the repository in this directory
  release-note -s scm:git:file://. --previous v1.0 --previous-type tag \
    --current v1.1 --current-type tag

  # Notes for a branch of a remote repository, limited to one directory
  release-note -s scm:git:https://github.com/owner/repo.git \
    --previous v1.0 --previous-type tag --current main --current-type branch \
    --path services/api -o dist/api-notes.txt`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				err = fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
				writeError(stderrOf(deps), err)
				return err
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runGenerate(cmd, f, deps)
			if err != nil {
				writeError(stderrOf(deps), err)
			}
			return err
		},
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		err = fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		writeError(stderrOf(deps), err)
		return err
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "",
		"YAML settings file (default "+config.DefaultConfigFile+" when present)")
	flags.StringVarP(&f.output, "output", "o", domain.DefaultOutputFilename,
		"File the release note is written to; replaced if it exists")
	flags.StringVarP(&f.scmURL, "scm-url", "s", "",
		"SCM connection URL, e.g. scm:git:https://github.com/owner/repo.git")
	flags.StringVar(&f.previous, "previous", "", "Identifier of the previous version")
	flags.StringVar(&f.previousType, "previous-type", "", "Type of the previous version: tag, branch or revision")
	flags.StringVar(&f.current, "current", "", "Identifier of the current version")
	flags.StringVar(&f.currentType, "current-type", "", "Type of the current version: tag, branch or revision")
	flags.IntVarP(&f.lineLimit, "line-limit", "l", domain.DefaultLineLimit,
		"Maximum length of a summary line")
	flags.StringVar(&f.scopePath, "path", domain.DefaultScopePath,
		"Only include commits touching this path, relative to the repository location")
	flags.StringSliceVar(&f.include, "include", nil, "Glob of repository paths to include (repeatable)")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "Glob of repository paths to exclude (repeatable)")
	flags.StringVar(&f.backend, "backend", config.DefaultBackend,
		"SCM backend: "+config.BackendGoGit+" or "+config.BackendGitCLI)
	flags.StringVar(&f.order, "order", domain.OldestFirst.String(),
		"Entry order: oldest-first or newest-first")
	flags.BoolVarP(&f.verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	return rootCmd
}

// runGenerate loads settings and generates the release note with injected dependencies.
func runGenerate(cmd *cobra.Command, f *rootFlags, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Set log level based on verbose flag (best-effort)
	if f.verbose {
		if err := os.Setenv(config.EnvLogLevel, "debug"); err != nil {
			writef(stderrOf(deps), "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	settings, err := deps.ConfigLoader(ctx, config.LoadOptions{
		ConfigPath: f.configPath,
		Overrides:  flagOverrides(cmd, f),
	})
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return asConfigurationError(err)
	}

	log.Info(ctx, "starting release-note", map[string]interface{}{
		"scm_url":  settings.ScmConnectionURL,
		"backend":  settings.ScmBackend,
		"previous": settings.PreviousVersion,
		"current":  settings.CurrentVersion,
		"output":   settings.OutputFilename,
		"verbose":  f.verbose,
	})

	provider, err := deps.ProviderFactory(settings, log)
	if err != nil {
		log.Error(ctx, "failed to create SCM provider", err, map[string]interface{}{
			"backend": settings.ScmBackend,
		})
		return asConfigurationError(err)
	}

	writer := deps.NoteWriterFactory(provider, log)
	result, err := writer.Generate(ctx, settings.NoteConfig())
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	writef(stdoutOf(deps), "%s %s (%d entries)\n",
		green("Release note written:"), result.OutputPath, result.Entries)
	return nil
}

// flagOverrides returns the settings for flags given on the command line.
// Flags left at their defaults do not mask the file or the environment.
func flagOverrides(cmd *cobra.Command, f *rootFlags) map[string]interface{} {
	values := map[string]struct {
		key   string
		value interface{}
	}{
		"output":        {config.KeyOutputFilename, f.output},
		"scm-url":       {config.KeyScmConnectionURL, f.scmURL},
		"previous":      {config.KeyPreviousVersion, f.previous},
		"previous-type": {config.KeyPreviousVersionType, f.previousType},
		"current":       {config.KeyCurrentVersion, f.current},
		"current-type":  {config.KeyCurrentVersionType, f.currentType},
		"line-limit":    {config.KeyLogLineLimit, f.lineLimit},
		"path":          {config.KeyScopePath, f.scopePath},
		"include":       {config.KeyScopeInclude, f.include},
		"exclude":       {config.KeyScopeExclude, f.exclude},
		"backend":       {config.KeyScmBackend, f.backend},
		"order":         {config.KeyHistoryOrder, f.order},
	}

	overrides := make(map[string]interface{})
	for name, v := range values {
		if cmd.Flags().Changed(name) {
			overrides[v.key] = v.value
		}
	}
	return overrides
}

// asConfigurationError puts uncategorised setup failures under ErrConfiguration.
func asConfigurationError(err error) error {
	if errors.Is(err, domain.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
}

// categories are the error classes reported to the user, in match order.
var categories = []error{domain.ErrConfiguration, domain.ErrIO, domain.ErrSCM}

// writeError prints err on one line led by its category.
func writeError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	msg := err.Error()
	label := "error"
	for _, c := range categories {
		if errors.Is(err, c) {
			label = c.Error()
			break
		}
	}
	msg = strings.TrimPrefix(strings.TrimPrefix(msg, label), ": ")

	writef(w, "%s %s\n", red(label+":"), msg)
}

func stdoutOf(deps *Dependencies) io.Writer {
	if deps != nil && deps.Stdout != nil {
		return deps.Stdout
	}
	return os.Stdout
}

func stderrOf(deps *Dependencies) io.Writer {
	if deps != nil && deps.Stderr != nil {
		return deps.Stderr
	}
	return os.Stderr
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writef writes a message to the given writer.
// Errors are ignored; there is no recovery action if a console write fails.
func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
