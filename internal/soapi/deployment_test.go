package soapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeployment(t *testing.T) {
	tests := []struct {
		name       string
		siteURL    string
		wantMode   AuthMode
		wantSlug   string
		wantLegacy string
		wantModern string
		wantErr    bool
	}{
		{
			name:       "teams",
			siteURL:    "https://stackoverflowteams.com/c/acme",
			wantMode:   AuthModeTeamsToken,
			wantSlug:   "acme",
			wantLegacy: "https://api.stackoverflowteams.com/2.3",
			wantModern: "https://api.stackoverflowteams.com/v3/teams/acme",
		},
		{
			name:       "teams with trailing path",
			siteURL:    "https://stackoverflowteams.com/c/acme/questions/",
			wantMode:   AuthModeTeamsToken,
			wantSlug:   "acme",
			wantLegacy: "https://api.stackoverflowteams.com/2.3",
			wantModern: "https://api.stackoverflowteams.com/v3/teams/acme",
		},
		{
			name:       "enterprise",
			siteURL:    "https://support.example.com/",
			wantMode:   AuthModeEnterpriseKeyToken,
			wantLegacy: "https://support.example.com/api/2.3",
			wantModern: "https://support.example.com/api/v3",
		},
		{name: "teams without slug", siteURL: "https://stackoverflowteams.com/", wantErr: true},
		{name: "empty", siteURL: "  ", wantErr: true},
		{name: "no scheme", siteURL: "support.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDeployment(tt.siteURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, d.Mode)
			assert.Equal(t, tt.wantSlug, d.TeamSlug)
			assert.Equal(t, tt.wantLegacy, d.LegacyBaseURL())
			assert.Equal(t, tt.wantModern, d.ModernBaseURL())
		})
	}
}

func TestDeployment_LegacyConfigDropsKeyForTeams(t *testing.T) {
	teams := Deployment{SiteURL: "https://stackoverflowteams.com/c/acme", TeamSlug: "acme", Mode: AuthModeTeamsToken}
	cfg := teams.LegacyConfig("tok", "key")
	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.Enterprise())

	enterprise := Deployment{SiteURL: "https://so.example.com", Mode: AuthModeEnterpriseKeyToken}
	cfg = enterprise.LegacyConfig("tok", "key")
	assert.Equal(t, "key", cfg.APIKey)
	assert.True(t, cfg.Enterprise())
}

func TestCredential(t *testing.T) {
	assert.False(t, Primary.Impersonated())
	assert.Equal(t, "primary", Primary.resolve("primary"))

	imp := Impersonating("other")
	assert.True(t, imp.Impersonated())
	assert.Equal(t, "other", imp.resolve("primary"))
}
