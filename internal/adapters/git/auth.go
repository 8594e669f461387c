package git

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Credentials authenticate HTTP(S) clones of remote repositories.
// A token-only setup puts the token in Password and leaves Username empty.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credential was supplied.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// authForURL picks the transport auth for a remote location.
// SSH remotes use the running ssh-agent. HTTP(S) remotes use basic auth when
// credentials were supplied, and anonymous access otherwise.
func authForURL(location string, creds Credentials) (transport.AuthMethod, error) {
	if isSSHURL(location) {
		return ssh.NewSSHAgentAuth("git")
	}

	if creds.IsZero() {
		return nil, nil
	}

	username := creds.Username
	if username == "" {
		// Token auth: hosting services accept any non-empty username.
		username = "x-access-token"
	}
	return &http.BasicAuth{
		Username: username,
		Password: creds.Password,
	}, nil
}
