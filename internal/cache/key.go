package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/samsarahq/go/oops"
)

// ScopeKind discriminates the access-scope dimensions a cache key can
// be split by. A request is only cacheable along a dimension it can
// actually supply a value for.
type ScopeKind int

const (
	ScopeAPIKey ScopeKind = iota
	ScopeJWTClaim
	ScopeHeader
	ScopePublic
)

// ScopeDimension is one configured access-scope dimension. Claim and
// HeaderName are only meaningful for ScopeJWTClaim and ScopeHeader
// respectively.
type ScopeDimension struct {
	Kind       ScopeKind
	Claim      string
	HeaderName string
}

// Request is the subset of request data key building reads from.
// APIKeyIdentity is the caller's resolved identity-ops string for
// ScopeAPIKey; Claims and Headers back ScopeJWTClaim/ScopeHeader.
type Request struct {
	APIKeyIdentity string
	Claims         map[string]string
	Headers        map[string]string
}

// ErrBypass is returned by BuildKey when a configured scope dimension
// has no value on the request; the caller must treat this as a cache
// bypass rather than a build failure.
var ErrBypass = oops.Errorf("cache: scope dimension has no value on request, bypassing")

// BuildKey derives a cache key from an interned operation fingerprint,
// normalized variables (already default-filled and key-sorted by the
// caller), and the configured access-scope dimensions. Each dimension
// contributes one component so that requests differing only in an
// unrelated scope value still collide correctly.
func BuildKey(fingerprint string, variablesJSON string, scopes []ScopeDimension, req Request) (string, error) {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(variablesJSON))

	components, err := scopeComponents(scopes, req)
	if err != nil {
		return "", err
	}
	sort.Strings(components)
	for _, c := range components {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func scopeComponents(scopes []ScopeDimension, req Request) ([]string, error) {
	components := make([]string, 0, len(scopes))
	for _, s := range scopes {
		switch s.Kind {
		case ScopeAPIKey:
			if req.APIKeyIdentity == "" {
				return nil, ErrBypass
			}
			components = append(components, "apikey:"+req.APIKeyIdentity)
		case ScopeJWTClaim:
			v, ok := req.Claims[s.Claim]
			if !ok || v == "" {
				return nil, ErrBypass
			}
			components = append(components, fmt.Sprintf("jwt:%s=%s", s.Claim, v))
		case ScopeHeader:
			v, ok := req.Headers[s.HeaderName]
			if !ok || v == "" {
				return nil, ErrBypass
			}
			components = append(components, fmt.Sprintf("header:%s=%s", s.HeaderName, v))
		case ScopePublic:
			components = append(components, "public")
		}
	}
	return components, nil
}
