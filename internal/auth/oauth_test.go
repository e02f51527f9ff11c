package auth

import (
	"testing"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returnbox_back_end/internal/config"
)

func TestSetupOAuthRegistersConfiguredProviders(t *testing.T) {
	t.Cleanup(goth.ClearProviders)

	assert.Equal(t, 0, SetupOAuth(config.OAuthSettings{}, "http://localhost:8080", "secret", false))

	n := SetupOAuth(config.OAuthSettings{GoogleClientID: "id", GoogleClientSecret: "s"}, "http://localhost:8080", "secret", false)
	assert.Equal(t, 1, n)

	p, err := goth.GetProvider("google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
}
