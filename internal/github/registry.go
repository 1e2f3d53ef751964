package github

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/greport/greport/internal/apperrors"
	"github.com/greport/greport/internal/models"
)

// Credential is an opaque bearer token plus its endpoints. It is never
// logged or serialized; only the client constructor reads the token.
type Credential struct {
	Token   string
	BaseURL string
	WebURL  string
}

// OrgCredential binds a credential to a named organization.
type OrgCredential struct {
	Name string
	Credential
}

// Registry resolves repository owners to credentials and caches one
// client per distinct credential.
type Registry struct {
	mu      sync.Mutex
	orgs    map[string]OrgCredential
	order   []string
	def     Credential
	clients map[string]*Client
	log     *logrus.Entry
}

// NewRegistry builds a registry from per-org entries and a default
// credential. Owner matching is case-insensitive.
func NewRegistry(orgs []OrgCredential, def Credential, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Registry{
		orgs:    make(map[string]OrgCredential, len(orgs)),
		def:     def,
		clients: make(map[string]*Client),
		log:     log,
	}
	for _, org := range orgs {
		key := strings.ToLower(org.Name)
		if _, dup := r.orgs[key]; !dup {
			r.order = append(r.order, org.Name)
		}
		r.orgs[key] = org
	}
	return r
}

// envTokenFor looks up GREPORT_ORG_<NAME>_TOKEN for an owner.
func envTokenFor(owner string) string {
	name := strings.ToUpper(strings.ReplaceAll(owner, "-", "_"))
	return os.Getenv("GREPORT_ORG_" + name + "_TOKEN")
}

// Resolve returns the credential for an owner. Per-org entries win, then
// an owner-named environment token, then the default credential.
func (r *Registry) Resolve(owner string) Credential {
	if org, ok := r.orgs[strings.ToLower(owner)]; ok {
		cred := org.Credential
		if cred.BaseURL == "" {
			cred.BaseURL = r.def.BaseURL
		}
		if cred.WebURL == "" {
			cred.WebURL = r.def.WebURL
		}
		return cred
	}
	if token := envTokenFor(owner); token != "" {
		return Credential{Token: token, BaseURL: r.def.BaseURL, WebURL: r.def.WebURL}
	}
	return r.def
}

// CredentialKey returns an opaque in-process grouping key: two owners
// share a key iff they resolve to the same credential and endpoint. The
// key embeds the token, so it must never be logged or serialized.
func (r *Registry) CredentialKey(owner string) string {
	cred := r.Resolve(owner)
	return cred.Token + "\x00" + cred.BaseURL
}

// ClientFor returns the cached client for an owner's credential,
// constructing it on first use.
func (r *Registry) ClientFor(owner string) (*Client, error) {
	cred := r.Resolve(owner)

	r.mu.Lock()
	defer r.mu.Unlock()
	key := cred.Token + "\x00" + cred.BaseURL
	if client, ok := r.clients[key]; ok {
		return client, nil
	}
	client, err := NewClient(cred.Token, cred.BaseURL, r.log)
	if err != nil {
		return nil, err
	}
	r.clients[key] = client
	return client, nil
}

// Organizations lists the configured organizations. Tokens are reported
// only as presence flags.
func (r *Registry) Organizations() []models.Organization {
	out := make([]models.Organization, 0, len(r.order))
	for _, name := range r.order {
		org := r.orgs[strings.ToLower(name)]
		out = append(out, models.Organization{
			Name:     org.Name,
			BaseURL:  org.BaseURL,
			WebURL:   org.WebURL,
			HasToken: org.Token != "" || envTokenFor(org.Name) != "",
		})
	}
	return out
}

// HasOrg reports whether an organization entry is configured for the owner.
func (r *Registry) HasOrg(owner string) bool {
	_, ok := r.orgs[strings.ToLower(owner)]
	return ok
}

// ValidationResult classifies one credential after contacting the host.
type ValidationResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // valid | invalid | unreachable
	Viewer string `json:"viewer,omitempty"`
}

// Validate contacts the host's identity endpoint with every configured
// credential. Used at startup and by the CLI's verbose mode.
func (r *Registry) Validate(ctx context.Context) []ValidationResult {
	names := make([]string, 0, len(r.order)+1)
	if r.def.Token != "" {
		names = append(names, "default")
	}
	names = append(names, r.order...)

	results := make([]ValidationResult, 0, len(names))
	for _, name := range names {
		owner := name
		if name == "default" {
			owner = ""
		}
		result := ValidationResult{Name: name}
		client, err := r.ClientFor(owner)
		if err != nil {
			result.Status = "invalid"
			results = append(results, result)
			continue
		}
		viewer, err := client.Viewer(ctx)
		switch {
		case err == nil:
			result.Status = "valid"
			result.Viewer = viewer
		case apperrors.CodeOf(err) == apperrors.CodeUnauthorized:
			result.Status = "invalid"
		default:
			result.Status = "unreachable"
		}
		results = append(results, result)
	}
	return results
}
