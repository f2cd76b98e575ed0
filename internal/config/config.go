// Package config loads the gateway's subgraph manifest and ambient
// cache/auth settings. Schema composition and a general configuration
// framework are out of scope (spec.md §1), so this stays a struct plus
// a loader: no validation DSL, no hot reload, no secret management.
//
// It generalizes federationexample/gqlgateway/main.go's hardcoded
// `map[string]string{"device": "localhost:1234", ...}` subgraph list
// into a loaded manifest carrying a transport kind alongside each URL,
// since this gateway speaks both GraphQL-over-HTTP and gRPC to
// subgraphs (internal/subgraph) rather than only gRPC.
package config

import (
	"os"

	"github.com/samsarahq/go/oops"
	"gopkg.in/yaml.v3"
)

// Transport names one of the wire protocols internal/subgraph speaks.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportGRPC Transport = "grpc"
)

// SubgraphConfig is one entry of the subgraph manifest: a name
// matching a schema.Doc.Subgraphs entry, which transport to dial it
// with, and the address.
type SubgraphConfig struct {
	Name      string    `yaml:"name"`
	Transport Transport `yaml:"transport"`
	URL       string    `yaml:"url"`
}

// CacheConfig selects and sizes the response cache backend (spec.md
// §4.7). Only the in-memory backend (internal/cache/memory) is wired
// today; Backend is still named so a future backend can be selected
// without changing the manifest shape.
type CacheConfig struct {
	Backend    string `yaml:"backend"`
	ShardCount int    `yaml:"shard_count"`

	// MaxAgeSeconds/StaleSeconds set the default freshness window
	// applied to every cached response (spec.md §4.7's
	// max_age_seconds/stale_seconds), since the schema graph carries
	// no per-field cache-control directive to derive them from.
	MaxAgeSeconds int `yaml:"max_age_seconds"`
	StaleSeconds  int `yaml:"stale_seconds"`

	// Peers lists the admin-surface websocket URLs of sibling gateway
	// replicas this process should fan purge tags out to and accept
	// purge tags from (internal/cache/purge.Fanout), so a mutation
	// committed against one replica evicts the response cache held by
	// every other replica in the fleet.
	Peers []string `yaml:"peers"`
}

// AuthConfig carries the small amount of policy internal/authz needs
// that isn't per-field (that lives in the schema's directives):
// whether an unauthenticated caller is rejected before any field is
// even evaluated.
type AuthConfig struct {
	RequireAuthenticated bool `yaml:"require_authenticated"`
}

// Config is the full manifest this gateway process is configured
// with.
type Config struct {
	Subgraphs []SubgraphConfig `yaml:"subgraphs"`
	Cache     CacheConfig      `yaml:"cache"`
	Auth      AuthConfig       `yaml:"auth"`
}

// Load reads and parses the YAML manifest at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Wrapf(err, "reading config file %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, oops.Wrapf(err, "parsing config file %s", path)
	}
	return &cfg, nil
}

// envPrefix namespaces every override this package recognizes.
const envPrefix = "FEDGATE_"

// ApplyEnvOverrides overlays a small, fixed set of environment
// variables onto cfg, for the handful of settings that operators
// typically flip per-deployment without editing the manifest file.
// Unset variables leave cfg unchanged.
func ApplyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(envPrefix + "CACHE_BACKEND"); ok {
		cfg.Cache.Backend = v
	}
	if v, ok := os.LookupEnv(envPrefix + "REQUIRE_AUTHENTICATED"); ok {
		cfg.Auth.RequireAuthenticated = v == "true" || v == "1"
	}
}
