// Package config provides configuration loading for the release-note application.
// Settings are layered with koanf: built-in defaults, then an optional YAML file,
// then RELEASE_NOTE_* environment variables, then explicit overrides (CLI flags).
// SCM credentials come from HashiCorp Vault when configured, or from the
// environment otherwise.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

// Environment variable names.
const (
	// EnvPrefix prefixes every environment variable mapped onto a setting,
	// e.g. RELEASE_NOTE_LOG_LINE_LIMIT sets log_line_limit.
	EnvPrefix = "RELEASE_NOTE_"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvVaultScmCredentialsPath is the path in Vault KV where SCM credentials are stored.
	EnvVaultScmCredentialsPath = "VAULT_SCM_CREDENTIALS_PATH"

	// EnvVaultScmCredentialsMount is the Vault KV mount point (defaults to "secret").
	EnvVaultScmCredentialsMount = "VAULT_SCM_CREDENTIALS_MOUNT"

	// EnvGitUsername, EnvGitPassword and EnvGitHubToken supply credentials when
	// Vault is not configured.
	EnvGitUsername = "GIT_USERNAME"
	EnvGitPassword = "GIT_PASSWORD"
	EnvGitHubToken = "GITHUB_TOKEN"
)

// Setting keys, shared by the YAML file, the environment and overrides.
const (
	KeyOutputFilename      = "output_filename"
	KeyScmConnectionURL    = "scm_connection_url"
	KeyPreviousVersion     = "previous_version"
	KeyPreviousVersionType = "previous_version_type"
	KeyCurrentVersion      = "current_version"
	KeyCurrentVersionType  = "current_version_type"
	KeyLogLineLimit        = "log_line_limit"
	KeyScopePath           = "scope_path"
	KeyScopeInclude        = "scope_include"
	KeyScopeExclude        = "scope_exclude"
	KeyScmBackend          = "scm_backend"
	KeyHistoryOrder        = "history_order"
)

// SCM backends.
const (
	BackendGoGit  = "gogit"
	BackendGitCLI = "gitcli"
)

// Default values.
const (
	DefaultConfigFile = ".release-note.yml"
	DefaultVaultMount = "secret"
	DefaultBackend    = BackendGoGit
)

// Configuration errors.
var (
	// ErrConfigFileNotFound indicates an explicitly requested config file does not exist.
	ErrConfigFileNotFound = fmt.Errorf("%w: config file not found", domain.ErrConfiguration)

	// ErrInvalidSetting indicates a setting has a value outside its allowed set.
	ErrInvalidSetting = fmt.Errorf("%w: invalid setting", domain.ErrConfiguration)

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = fmt.Errorf("%w: failed to create Vault client", domain.ErrConfiguration)

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = fmt.Errorf("%w: SCM credentials not found in Vault", domain.ErrConfiguration)

	// ErrVaultSecretInvalid indicates the Vault secret lacks a usable password.
	ErrVaultSecretInvalid = fmt.Errorf("%w: SCM credentials in Vault have no password", domain.ErrConfiguration)
)

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
// This is the default factory used in production.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Credentials authenticate clones of remote repositories.
type Credentials struct {
	Username string
	Password string
}

// Settings holds all application configuration.
type Settings struct {
	OutputFilename      string   `koanf:"output_filename"`
	ScmConnectionURL    string   `koanf:"scm_connection_url"`
	PreviousVersion     string   `koanf:"previous_version"`
	PreviousVersionType string   `koanf:"previous_version_type"`
	CurrentVersion      string   `koanf:"current_version"`
	CurrentVersionType  string   `koanf:"current_version_type"`
	LogLineLimit        int      `koanf:"log_line_limit"`
	ScopePath           string   `koanf:"scope_path"`
	ScopeInclude        []string `koanf:"scope_include"`
	ScopeExclude        []string `koanf:"scope_exclude"`
	ScmBackend          string   `koanf:"scm_backend"`
	HistoryOrder        string   `koanf:"history_order"`

	// Credentials are never read from the file or RELEASE_NOTE_* variables.
	Credentials Credentials `koanf:"-"`
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigPath is an explicit YAML file. It must exist when set.
	// When empty, DefaultConfigFile is loaded if present.
	ConfigPath string

	// Overrides are applied last, keyed by the Key* constants.
	Overrides map[string]interface{}

	// VaultClientFactory creates the Vault client. Nil means DefaultVaultClientFactory.
	VaultClientFactory VaultClientFactory
}

// Defaults returns the built-in value of every setting that has one.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyOutputFilename: domain.DefaultOutputFilename,
		KeyLogLineLimit:   domain.DefaultLineLimit,
		KeyScopePath:      domain.DefaultScopePath,
		KeyScmBackend:     DefaultBackend,
		KeyHistoryOrder:   domain.OldestFirst.String(),
	}
}

// Load builds Settings from defaults, the YAML file, the environment and
// opts.Overrides, in increasing priority, then resolves SCM credentials.
// Every error satisfies errors.Is(err, domain.ErrConfiguration).
func Load(ctx context.Context, opts LoadOptions) (*Settings, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
	}

	if err := loadConfigFile(k, opts.ConfigPath); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("%w: failed to load environment config: %w", domain.ErrConfiguration, err)
	}

	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", domain.ErrConfiguration, err)
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}

	creds, err := loadCredentials(ctx, opts.VaultClientFactory)
	if err != nil {
		return nil, err
	}
	settings.Credentials = creds

	return &settings, nil
}

// NoteConfig maps the settings onto the note generator's input.
func (s *Settings) NoteConfig() domain.NoteConfig {
	return domain.NoteConfig{
		OutputPath: s.OutputFilename,
		ScmURL:     s.ScmConnectionURL,
		Previous:   domain.VersionSpec{Kind: s.PreviousVersionType, ID: s.PreviousVersion},
		Current:    domain.VersionSpec{Kind: s.CurrentVersionType, ID: s.CurrentVersion},
		LineLimit:  s.LogLineLimit,
		Scope: domain.FileScope{
			Path:    s.ScopePath,
			Include: s.ScopeInclude,
			Exclude: s.ScopeExclude,
		},
	}
}

// Order returns the configured history order.
func (s *Settings) Order() (domain.HistoryOrder, error) {
	return domain.ParseHistoryOrder(s.HistoryOrder)
}

// validate checks the settings only this layer knows about. Required fields and
// revision kinds are checked by domain.NoteConfig.Validate.
func (s *Settings) validate() error {
	switch strings.ToLower(s.ScmBackend) {
	case BackendGoGit, BackendGitCLI:
		s.ScmBackend = strings.ToLower(s.ScmBackend)
	default:
		return fmt.Errorf("%w: %s %q, expected %s or %s",
			ErrInvalidSetting, KeyScmBackend, s.ScmBackend, BackendGoGit, BackendGitCLI)
	}

	if _, err := s.Order(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSetting, KeyHistoryOrder, err)
	}

	for _, pattern := range append(append([]string{}, s.ScopeInclude...), s.ScopeExclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: scope pattern %q", ErrInvalidSetting, pattern)
		}
	}
	return nil
}

// loadConfigFile loads the YAML config file, if any.
func loadConfigFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%w: failed to load config %s: %w", domain.ErrConfiguration, path, err)
	}
	return nil
}

// envTransform maps RELEASE_NOTE_SCOPE_INCLUDE=a,b to scope_include: [a b].
// Empty variables are ignored so they do not mask defaults.
func envTransform(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	switch key {
	case KeyScopeInclude, KeyScopeExclude:
		return key, SplitList(value)
	default:
		return key, value
	}
}

// SplitList splits a comma separated list, dropping blank items.
func SplitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// loadCredentials reads SCM credentials from Vault when VAULT_SCM_CREDENTIALS_PATH
// is set, and from GIT_USERNAME, GIT_PASSWORD or GITHUB_TOKEN otherwise.
func loadCredentials(ctx context.Context, vaultClientFactory VaultClientFactory) (Credentials, error) {
	if path := os.Getenv(EnvVaultScmCredentialsPath); path != "" {
		return loadCredentialsFromVault(ctx, vaultClientFactory, path)
	}

	creds := Credentials{
		Username: os.Getenv(EnvGitUsername),
		Password: os.Getenv(EnvGitPassword),
	}
	if creds.Password == "" {
		creds.Password = os.Getenv(EnvGitHubToken)
	}
	return creds, nil
}

// loadCredentialsFromVault reads the username and password keys of a KV v2 secret.
func loadCredentialsFromVault(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
	path string,
) (Credentials, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return Credentials{}, err
		}
		return Credentials{}, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	mount := os.Getenv(EnvVaultScmCredentialsMount)
	if mount == "" {
		mount = DefaultVaultMount
	}

	secret, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	username, _ := secret["username"].(string)
	password, _ := secret["password"].(string)
	if password == "" {
		return Credentials{}, fmt.Errorf("%w: %s", ErrVaultSecretInvalid, path)
	}

	return Credentials{Username: username, Password: password}, nil
}
