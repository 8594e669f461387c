package git

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/MyCarrier-DevOps/release-note/internal/domain"
)

const scmPrefix = "scm:"

// ConnectionURL is a parsed SCM connection string such as
// scm:git:https://github.com/owner/repo.git or scm:git:file:///srv/repo.
type ConnectionURL struct {
	// Raw is the connection string as supplied.
	Raw string

	// Provider is the SCM provider named by the URL, always "git" once parsed.
	Provider string

	// Location is the provider-specific part: a remote URL or a local path.
	Location string

	// Local reports whether Location names a directory on this machine.
	Local bool
}

// ParseConnectionURL parses scm:<provider>:<location>. The provider separator may
// also be '|' (scm:git|https://...). Only the git provider is supported.
func ParseConnectionURL(raw string) (ConnectionURL, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, scmPrefix) {
		return ConnectionURL{}, fmt.Errorf("%w: %q does not start with %q", domain.ErrMalformedURL, raw, scmPrefix)
	}
	s = s[len(scmPrefix):]

	sep := strings.IndexAny(s, ":|")
	if sep <= 0 {
		return ConnectionURL{}, fmt.Errorf("%w: %q has no provider", domain.ErrMalformedURL, raw)
	}

	provider := s[:sep]
	location := strings.TrimSpace(s[sep+1:])
	if !strings.EqualFold(provider, "git") {
		return ConnectionURL{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, provider)
	}
	if location == "" {
		return ConnectionURL{}, fmt.Errorf("%w: %q has no location", domain.ErrMalformedURL, raw)
	}

	u := ConnectionURL{Raw: raw, Provider: "git", Location: location}
	switch {
	case strings.HasPrefix(location, "file://"):
		u.Local = true
		u.Location = strings.TrimPrefix(location, "file://")
		if u.Location == "" {
			return ConnectionURL{}, fmt.Errorf("%w: %q has an empty file path", domain.ErrMalformedURL, raw)
		}
	case strings.Contains(location, "://"), scpLikePattern.MatchString(location):
		u.Local = false
	default:
		u.Local = true
	}

	if u.Local {
		u.Location = filepath.FromSlash(u.Location)
	}
	return u, nil
}

// RepositoryName returns owner/repo for remote locations, or the base directory
// name for local ones. It is used for log context only.
func (u ConnectionURL) RepositoryName() string {
	if u.Local {
		abs, err := filepath.Abs(u.Location)
		if err != nil {
			return u.Location
		}
		return filepath.Base(abs)
	}
	name, err := parseRepoFromURL(u.Location)
	if err != nil {
		return u.Location
	}
	return name
}

// Regular expressions for parsing Git remote URLs.
var (
	// httpsURLPattern matches HTTPS URLs like:
	// https://github.com/owner/repo.git
	// https://github.com/owner/repo
	httpsURLPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?$`)

	// sshURLPattern matches SSH URLs like:
	// git@github.com:owner/repo.git
	// ssh://git@github.com/owner/repo.git
	sshURLPattern = regexp.MustCompile(`^(?:ssh://)?[^@/]+@[^:/]+[:/]([^/]+)/([^/]+?)(?:\.git)?$`)

	// scpLikePattern matches scp-style remotes like user@host:path.
	scpLikePattern = regexp.MustCompile(`^[^@/\s]+@[^:/\s]+:.+$`)
)

// parseRepoFromURL extracts owner/repo from a Git remote URL.
// Supports both HTTPS and SSH formats:
//   - https://github.com/owner/repo.git -> owner/repo
//   - git@github.com:owner/repo.git -> owner/repo
//   - ssh://git@github.com/owner/repo.git -> owner/repo
func parseRepoFromURL(url string) (string, error) {
	url = strings.TrimSpace(url)

	if matches := httpsURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return matches[1] + "/" + matches[2], nil
	}

	if matches := sshURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return matches[1] + "/" + matches[2], nil
	}

	return "", fmt.Errorf("unrecognized URL format: %s", url)
}

// isSSHURL checks if a remote location is reached over SSH.
// Detects git@ (SCP-style), ssh://, and git+ssh:// schemes.
func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "ssh://") ||
		strings.HasPrefix(url, "git+ssh://") ||
		scpLikePattern.MatchString(url)
}
