package soapi

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	teamsSiteHost = "stackoverflowteams.com"

	// DefaultTeamsAPIHost serves both API generations for Teams deployments.
	DefaultTeamsAPIHost = "https://api.stackoverflowteams.com"
)

// AuthMode determines which auth headers a client sends.
type AuthMode int

const (
	// AuthModeTeamsToken sends the access token only, scoped by a team slug.
	AuthModeTeamsToken AuthMode = iota
	// AuthModeEnterpriseKeyToken sends an API key alongside the access token.
	AuthModeEnterpriseKeyToken
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeTeamsToken:
		return "teams"
	case AuthModeEnterpriseKeyToken:
		return "enterprise"
	default:
		return fmt.Sprintf("AuthMode(%d)", int(m))
	}
}

// Deployment describes where an instance lives. It is derived once from the
// site URL a user browses to.
type Deployment struct {
	SiteURL  string
	TeamSlug string // Teams only
	Mode     AuthMode

	// APIHost overrides DefaultTeamsAPIHost. Ignored for Enterprise.
	APIHost string
}

// ParseDeployment classifies a site URL. Teams URLs look like
// https://stackoverflowteams.com/c/<team>; everything else is treated as an
// Enterprise instance.
func ParseDeployment(siteURL string) (Deployment, error) {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if siteURL == "" {
		return Deployment{}, fmt.Errorf("site URL is required")
	}

	u, err := url.Parse(siteURL)
	if err != nil {
		return Deployment{}, fmt.Errorf("invalid site URL %q: %w", siteURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Deployment{}, fmt.Errorf("site URL %q must start with http:// or https://", siteURL)
	}
	if u.Host == "" {
		return Deployment{}, fmt.Errorf("site URL %q has no host", siteURL)
	}

	host := strings.ToLower(u.Hostname())
	if host != teamsSiteHost && !strings.HasSuffix(host, "."+teamsSiteHost) {
		return Deployment{SiteURL: siteURL, Mode: AuthModeEnterpriseKeyToken}, nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "c" || segments[1] == "" {
		return Deployment{}, fmt.Errorf("teams URL %q must look like https://%s/c/TEAM-NAME", siteURL, teamsSiteHost)
	}

	return Deployment{
		SiteURL:  siteURL,
		TeamSlug: segments[1],
		Mode:     AuthModeTeamsToken,
	}, nil
}

// Enterprise reports whether the deployment is self-hosted.
func (d Deployment) Enterprise() bool {
	return d.Mode == AuthModeEnterpriseKeyToken
}

func (d Deployment) teamsAPIHost() string {
	if d.APIHost != "" {
		return strings.TrimRight(d.APIHost, "/")
	}
	return DefaultTeamsAPIHost
}

// LegacyBaseURL is the root of the 2.3 API.
func (d Deployment) LegacyBaseURL() string {
	if d.Enterprise() {
		return d.SiteURL + "/api/2.3"
	}
	return d.teamsAPIHost() + "/2.3"
}

// ModernBaseURL is the root of the v3 API.
func (d Deployment) ModernBaseURL() string {
	if d.Enterprise() {
		return d.SiteURL + "/api/v3"
	}
	return d.teamsAPIHost() + "/v3/teams/" + d.TeamSlug
}

// LegacyConfig builds the config for a LegacyClient. The key is only sent to
// Enterprise instances.
func (d Deployment) LegacyConfig(token, key string) ClientConfig {
	cfg := ClientConfig{
		BaseURL:  d.LegacyBaseURL(),
		AuthMode: d.Mode,
		APIToken: token,
		TeamSlug: d.TeamSlug,
	}
	if d.Enterprise() {
		cfg.APIKey = key
	}
	return cfg
}

// ModernConfig builds the config for a ModernClient.
func (d Deployment) ModernConfig(token string) ClientConfig {
	return ClientConfig{
		BaseURL:  d.ModernBaseURL(),
		AuthMode: d.Mode,
		APIToken: token,
		TeamSlug: d.TeamSlug,
	}
}

// ClientConfig is immutable after construction.
type ClientConfig struct {
	BaseURL  string
	AuthMode AuthMode
	APIKey   string
	APIToken string
	TeamSlug string
}

// Enterprise reports whether the config targets a self-hosted instance.
func (c ClientConfig) Enterprise() bool {
	return c.AuthMode == AuthModeEnterpriseKeyToken
}

// Credential selects the access token for a single call. The zero value
// uses the client's own token.
type Credential struct {
	token string
}

// Primary is the client's own credential.
var Primary = Credential{}

// Impersonating returns a credential that acts as the user the token was
// exchanged for.
func Impersonating(token string) Credential {
	return Credential{token: token}
}

// Impersonated reports whether the credential replaces the primary token.
func (c Credential) Impersonated() bool {
	return c.token != ""
}

// resolve returns the token to send for this credential.
func (c Credential) resolve(primary string) string {
	if c.token != "" {
		return c.token
	}
	return primary
}
