package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(
		[]OrgCredential{
			{Name: "Acme", Credential: Credential{Token: "acme-token", WebURL: "https://github.acme.com"}},
			{Name: "widgets", Credential: Credential{Token: "widgets-token"}},
		},
		Credential{Token: "default-token", BaseURL: "https://api.github.com", WebURL: "https://github.com"},
		nil,
	)
}

func TestRegistryResolveOrgEntry(t *testing.T) {
	r := testRegistry(t)

	cred := r.Resolve("Acme")
	assert.Equal(t, "acme-token", cred.Token)
	assert.Equal(t, "https://github.acme.com", cred.WebURL)
	// Missing endpoints inherit the defaults.
	assert.Equal(t, "https://api.github.com", cred.BaseURL)
}

func TestRegistryResolveCaseInsensitive(t *testing.T) {
	r := testRegistry(t)

	for _, owner := range []string{"acme", "ACME", "aCmE"} {
		cred := r.Resolve(owner)
		assert.Equal(t, "acme-token", cred.Token, "owner %q", owner)
	}
}

func TestRegistryResolveDefaultWhenNoMatch(t *testing.T) {
	r := testRegistry(t)

	cred := r.Resolve("someone-else")
	assert.Equal(t, "default-token", cred.Token)
}

func TestRegistryResolveEnvFallback(t *testing.T) {
	r := testRegistry(t)

	t.Setenv("GREPORT_ORG_MY_ORG_TOKEN", "env-token")
	cred := r.Resolve("my-org")
	assert.Equal(t, "env-token", cred.Token)
	assert.Equal(t, "https://api.github.com", cred.BaseURL)

	// A configured entry still wins over the environment.
	t.Setenv("GREPORT_ORG_ACME_TOKEN", "should-not-win")
	assert.Equal(t, "acme-token", r.Resolve("acme").Token)
}

func TestRegistryOrganizationsNeverExposeTokens(t *testing.T) {
	r := testRegistry(t)

	orgs := r.Organizations()
	require.Len(t, orgs, 2)
	assert.Equal(t, "Acme", orgs[0].Name)
	assert.True(t, orgs[0].HasToken)
	assert.True(t, orgs[1].HasToken)
}

func TestRegistryClientForCachesPerCredential(t *testing.T) {
	r := testRegistry(t)

	a, err := r.ClientFor("acme")
	require.NoError(t, err)
	b, err := r.ClientFor("ACME")
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := r.ClientFor("someone-else")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestRegistryCredentialKeyGroupsByCredential(t *testing.T) {
	r := testRegistry(t)

	assert.Equal(t, r.CredentialKey("acme"), r.CredentialKey("ACME"))
	assert.NotEqual(t, r.CredentialKey("acme"), r.CredentialKey("widgets"))
	// Owners falling through to the default share one budget.
	assert.Equal(t, r.CredentialKey("someone"), r.CredentialKey("anyone"))
}

func TestParseFullName(t *testing.T) {
	owner, name, err := ParseFullName("acme/rockets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "rockets", name)

	for _, bad := range []string{"", "acme", "/rockets", "acme/"} {
		_, _, err := ParseFullName(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
