package main

import (
	"net/http"
	"strings"

	"github.com/graphweave/fedgate/internal/authz"
)

// identityFromRequest extracts the already-verified caller identity
// internal/authz.Identity expects from request headers. Token
// verification itself happens upstream of the gateway (spec.md §1:
// "only the shape of its output — identity + group set — matters"),
// so this reads the headers a verifying proxy or sidecar is expected
// to set rather than parsing a bearer token itself.
func identityFromRequest(r *http.Request) authz.Identity {
	subject := r.Header.Get("X-Identity-Subject")
	if subject == "" {
		return authz.Identity{}
	}

	var groups []string
	if raw := r.Header.Get("X-Identity-Groups"); raw != "" {
		for _, g := range strings.Split(raw, ",") {
			g = strings.TrimSpace(g)
			if g != "" {
				groups = append(groups, g)
			}
		}
	}

	claims := make(map[string]interface{})
	const claimPrefix = "X-Identity-Claim-"
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		if !strings.HasPrefix(name, claimPrefix) {
			continue
		}
		claimName := strings.ToLower(strings.TrimPrefix(name, claimPrefix))
		claims[claimName] = values[0]
	}

	return authz.Identity{Subject: subject, Groups: groups, Claims: claims}
}

// cacheRequestFromHTTP collects the identity fields a ScopeDimension
// set reads (toCacheRequest turns the result into a cache.Request), so a manifest-configured JWT-claim or header
// scope dimension can split the cache by caller without cacheable.go
// or the handler needing to know which dimensions are configured.
func cacheRequestFromHTTP(r *http.Request, identity authz.Identity) cacheRequestInput {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	claims := make(map[string]string, len(identity.Claims))
	for k, v := range identity.Claims {
		if s, ok := v.(string); ok {
			claims[k] = s
		}
	}
	return cacheRequestInput{
		apiKeyIdentity: identity.Subject,
		claims:         claims,
		headers:        headers,
	}
}

type cacheRequestInput struct {
	apiKeyIdentity string
	claims         map[string]string
	headers        map[string]string
}
