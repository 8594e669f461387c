package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

// mockVaultClient implements VaultClient interface for testing.
type mockVaultClient struct {
	secrets   map[string]map[string]interface{}
	err       error
	lastMount string
}

func (m *mockVaultClient) GetKVSecret(_ context.Context, path, mount string) (map[string]interface{}, error) {
	m.lastMount = mount
	if m.err != nil {
		return nil, m.err
	}
	if secret, ok := m.secrets[path]; ok {
		return secret, nil
	}
	return nil, errors.New("secret not found")
}

// mockVaultClientFactory creates a factory that returns the provided mock client.
func mockVaultClientFactory(client VaultClient, err error) VaultClientFactory {
	return func(_ context.Context) (VaultClient, error) {
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// isolateEnv clears every variable Load reads and moves into an empty directory
// so no .release-note.yml is picked up.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		KeyOutputFilename, KeyScmConnectionURL, KeyPreviousVersion, KeyPreviousVersionType,
		KeyCurrentVersion, KeyCurrentVersionType, KeyLogLineLimit, KeyScopePath,
		KeyScopeInclude, KeyScopeExclude, KeyScmBackend, KeyHistoryOrder,
	} {
		t.Setenv(EnvPrefix+strings.ToUpper(key), "")
	}
	t.Setenv(EnvVaultScmCredentialsPath, "")
	t.Setenv(EnvVaultScmCredentialsMount, "")
	t.Setenv(EnvGitUsername, "")
	t.Setenv(EnvGitPassword, "")
	t.Setenv(EnvGitHubToken, "")
	t.Chdir(t.TempDir())
}

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleYAML = `
output_filename: dist/notes.txt
scm_connection_url: scm:git:https://github.com/owner/repo.git
previous_version: v1.0
previous_version_type: tag
current_version: v1.1
current_version_type: tag
log_line_limit: 40
scope_path: services/api
scope_include:
  - "**/*.go"
scope_exclude:
  - "**/*_test.go"
scm_backend: gitcli
history_order: newest-first
`

func TestLoad_Defaults(t *testing.T) {
	// Arrange
	isolateEnv(t)

	// Act
	settings, err := Load(context.Background(), LoadOptions{})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, domain.DefaultOutputFilename, settings.OutputFilename)
	assert.Equal(t, domain.DefaultLineLimit, settings.LogLineLimit)
	assert.Equal(t, domain.DefaultScopePath, settings.ScopePath)
	assert.Equal(t, BackendGoGit, settings.ScmBackend)
	assert.Equal(t, "oldest-first", settings.HistoryOrder)
	assert.Empty(t, settings.ScmConnectionURL)
	assert.Empty(t, settings.ScopeInclude)
	assert.Equal(t, Credentials{}, settings.Credentials)
}

func TestLoad_ConfigFile(t *testing.T) {
	// Arrange
	isolateEnv(t)
	path := writeConfigFile(t, t.TempDir(), "notes.yml", sampleYAML)

	// Act
	settings, err := Load(context.Background(), LoadOptions{ConfigPath: path})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "dist/notes.txt", settings.OutputFilename)
	assert.Equal(t, "scm:git:https://github.com/owner/repo.git", settings.ScmConnectionURL)
	assert.Equal(t, "v1.0", settings.PreviousVersion)
	assert.Equal(t, "tag", settings.PreviousVersionType)
	assert.Equal(t, "v1.1", settings.CurrentVersion)
	assert.Equal(t, "tag", settings.CurrentVersionType)
	assert.Equal(t, 40, settings.LogLineLimit)
	assert.Equal(t, "services/api", settings.ScopePath)
	assert.Equal(t, []string{"**/*.go"}, settings.ScopeInclude)
	assert.Equal(t, []string{"**/*_test.go"}, settings.ScopeExclude)
	assert.Equal(t, BackendGitCLI, settings.ScmBackend)
	assert.Equal(t, "newest-first", settings.HistoryOrder)
}

func TestLoad_DefaultConfigFileInWorkingDirectory(t *testing.T) {
	isolateEnv(t)
	cwd, err := os.Getwd()
	require.NoError(t, err)
	writeConfigFile(t, cwd, DefaultConfigFile, "log_line_limit: 60\n")

	settings, err := Load(context.Background(), LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, 60, settings.LogLineLimit)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	// Arrange
	isolateEnv(t)
	path := writeConfigFile(t, t.TempDir(), "notes.yml", sampleYAML)
	t.Setenv("RELEASE_NOTE_LOG_LINE_LIMIT", "100")
	t.Setenv("RELEASE_NOTE_CURRENT_VERSION", "main")
	t.Setenv("RELEASE_NOTE_CURRENT_VERSION_TYPE", "branch")
	t.Setenv("RELEASE_NOTE_SCOPE_INCLUDE", "api/**, web/** ,")

	// Act
	settings, err := Load(context.Background(), LoadOptions{ConfigPath: path})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 100, settings.LogLineLimit)
	assert.Equal(t, "main", settings.CurrentVersion)
	assert.Equal(t, "branch", settings.CurrentVersionType)
	assert.Equal(t, []string{"api/**", "web/**"}, settings.ScopeInclude)
	assert.Equal(t, "v1.0", settings.PreviousVersion)
}

func TestLoad_OverridesWin(t *testing.T) {
	isolateEnv(t)
	t.Setenv("RELEASE_NOTE_OUTPUT_FILENAME", "from-env.txt")
	t.Setenv("RELEASE_NOTE_SCM_BACKEND", "gitcli")

	settings, err := Load(context.Background(), LoadOptions{
		Overrides: map[string]interface{}{
			KeyOutputFilename: "from-flag.txt",
			KeyLogLineLimit:   12,
			KeyScopeExclude:   []string{"docs/**"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "from-flag.txt", settings.OutputFilename)
	assert.Equal(t, 12, settings.LogLineLimit)
	assert.Equal(t, []string{"docs/**"}, settings.ScopeExclude)
	assert.Equal(t, BackendGitCLI, settings.ScmBackend)
}

func TestLoad_BackendIsCaseInsensitive(t *testing.T) {
	isolateEnv(t)
	t.Setenv("RELEASE_NOTE_SCM_BACKEND", "GitCLI")

	settings, err := Load(context.Background(), LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, BackendGitCLI, settings.ScmBackend)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		arrange func(t *testing.T) LoadOptions
		wantErr error
	}{
		{
			name: "explicit config file missing",
			arrange: func(t *testing.T) LoadOptions {
				return LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yml")}
			},
			wantErr: ErrConfigFileNotFound,
		},
		{
			name: "malformed yaml",
			arrange: func(t *testing.T) LoadOptions {
				return LoadOptions{ConfigPath: writeConfigFile(t, t.TempDir(), "bad.yml", "log_line_limit: [unclosed\n")}
			},
			wantErr: domain.ErrConfiguration,
		},
		{
			name: "line limit not a number",
			arrange: func(t *testing.T) LoadOptions {
				t.Setenv("RELEASE_NOTE_LOG_LINE_LIMIT", "eighty")
				return LoadOptions{}
			},
			wantErr: domain.ErrConfiguration,
		},
		{
			name: "unknown backend",
			arrange: func(t *testing.T) LoadOptions {
				t.Setenv("RELEASE_NOTE_SCM_BACKEND", "svn")
				return LoadOptions{}
			},
			wantErr: ErrInvalidSetting,
		},
		{
			name: "unknown history order",
			arrange: func(t *testing.T) LoadOptions {
				t.Setenv("RELEASE_NOTE_HISTORY_ORDER", "random")
				return LoadOptions{}
			},
			wantErr: ErrInvalidSetting,
		},
		{
			name: "bad scope pattern",
			arrange: func(t *testing.T) LoadOptions {
				return LoadOptions{Overrides: map[string]interface{}{KeyScopeInclude: []string{"api/[unclosed"}}}
			},
			wantErr: ErrInvalidSetting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			isolateEnv(t)
			opts := tt.arrange(t)

			// Act
			settings, err := Load(context.Background(), opts)

			// Assert
			require.Error(t, err)
			assert.Nil(t, settings)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestSettings_NoteConfig(t *testing.T) {
	settings := &Settings{
		OutputFilename:      "out/notes.txt",
		ScmConnectionURL:    "scm:git:file:///srv/repo",
		PreviousVersion:     "v1.0",
		PreviousVersionType: "tag",
		CurrentVersion:      "abc123",
		CurrentVersionType:  "revision",
		LogLineLimit:        72,
		ScopePath:           "api",
		ScopeInclude:        []string{"**/*.go"},
		ScopeExclude:        []string{"**/*_test.go"},
	}

	cfg := settings.NoteConfig()

	assert.Equal(t, domain.NoteConfig{
		OutputPath: "out/notes.txt",
		ScmURL:     "scm:git:file:///srv/repo",
		Previous:   domain.VersionSpec{Kind: "tag", ID: "v1.0"},
		Current:    domain.VersionSpec{Kind: "revision", ID: "abc123"},
		LineLimit:  72,
		Scope: domain.FileScope{
			Path:    "api",
			Include: []string{"**/*.go"},
			Exclude: []string{"**/*_test.go"},
		},
	}, cfg)
}

func TestSettings_Order(t *testing.T) {
	order, err := (&Settings{HistoryOrder: "Newest-First"}).Order()
	require.NoError(t, err)
	assert.Equal(t, domain.NewestFirst, order)

	order, err = (&Settings{}).Order()
	require.NoError(t, err)
	assert.Equal(t, domain.OldestFirst, order)
}

func TestLoad_CredentialsFromEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Credentials
	}{
		{name: "none", env: map[string]string{}, want: Credentials{}},
		{
			name: "username and password",
			env:  map[string]string{EnvGitUsername: "ci-bot", EnvGitPassword: "s3cret"},
			want: Credentials{Username: "ci-bot", Password: "s3cret"},
		},
		{
			name: "token fallback",
			env:  map[string]string{EnvGitHubToken: "ghp_token"},
			want: Credentials{Password: "ghp_token"},
		},
		{
			name: "password beats token",
			env:  map[string]string{EnvGitPassword: "s3cret", EnvGitHubToken: "ghp_token"},
			want: Credentials{Password: "s3cret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			settings, err := Load(context.Background(), LoadOptions{})

			require.NoError(t, err)
			assert.Equal(t, tt.want, settings.Credentials)
		})
	}
}

func TestLoad_CredentialsFromVault(t *testing.T) {
	// Arrange
	isolateEnv(t)
	t.Setenv(EnvVaultScmCredentialsPath, "ci/release-note/scm")
	t.Setenv(EnvGitPassword, "ignored-when-vault-is-set")
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/release-note/scm": {"username": "vault-bot", "password": "from-vault"},
		},
	}

	// Act
	settings, err := Load(context.Background(), LoadOptions{VaultClientFactory: mockVaultClientFactory(mockClient, nil)})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "vault-bot", Password: "from-vault"}, settings.Credentials)
	assert.Equal(t, DefaultVaultMount, mockClient.lastMount)
}

func TestLoad_CredentialsFromVault_CustomMount(t *testing.T) {
	isolateEnv(t)
	t.Setenv(EnvVaultScmCredentialsPath, "ci/release-note/scm")
	t.Setenv(EnvVaultScmCredentialsMount, "custom-kv")
	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/release-note/scm": {"password": "token-only"},
		},
	}

	settings, err := Load(context.Background(), LoadOptions{VaultClientFactory: mockVaultClientFactory(mockClient, nil)})

	require.NoError(t, err)
	assert.Equal(t, Credentials{Password: "token-only"}, settings.Credentials)
	assert.Equal(t, "custom-kv", mockClient.lastMount)
}

func TestLoad_CredentialsFromVault_Errors(t *testing.T) {
	tests := []struct {
		name       string
		client     *mockVaultClient
		factoryErr error
		wantErr    error
	}{
		{
			name:       "client creation fails",
			factoryErr: errors.New("vault unreachable"),
			wantErr:    ErrVaultClientFailed,
		},
		{
			name:    "secret missing",
			client:  &mockVaultClient{secrets: map[string]map[string]interface{}{}},
			wantErr: ErrVaultSecretNotFound,
		},
		{
			name:    "vault read error",
			client:  &mockVaultClient{err: errors.New("permission denied")},
			wantErr: ErrVaultSecretNotFound,
		},
		{
			name: "secret without password",
			client: &mockVaultClient{secrets: map[string]map[string]interface{}{
				"ci/release-note/scm": {"username": "vault-bot"},
			}},
			wantErr: ErrVaultSecretInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(EnvVaultScmCredentialsPath, "ci/release-note/scm")

			var client VaultClient
			if tt.client != nil {
				client = tt.client
			}

			settings, err := Load(context.Background(), LoadOptions{
				VaultClientFactory: mockVaultClientFactory(client, tt.factoryErr),
			})

			require.Error(t, err)
			assert.Nil(t, settings)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "a", want: []string{"a"}},
		{in: "a,b", want: []string{"a", "b"}},
		{in: " a , ,b ,", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.in))
		})
	}
}
