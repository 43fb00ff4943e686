package cache

import (
	"strings"
)

// KeyBuilder derives deterministic cache keys of the form
// <namespace>:<provider>:<entityType>:<handle>:<version>.
//
// Handles are lowercased and trimmed so equivalent spellings share one entry.
// Bumping Version invalidates every prior entry without deleting anything:
// old keys simply stop being looked up and age out at the hard TTL.
type KeyBuilder struct {
	Namespace  string
	Provider   string
	EntityType string
	Version    string
}

// NewKeyBuilder fills the conventional defaults for empty components.
func NewKeyBuilder(namespace, provider, entityType, version string) KeyBuilder {
	if namespace == "" {
		namespace = "sociallens"
	}
	if provider == "" {
		provider = "unknown"
	}
	if entityType == "" {
		entityType = "profile"
	}
	if version == "" {
		version = "v1"
	}
	return KeyBuilder{Namespace: namespace, Provider: provider, EntityType: entityType, Version: version}
}

// Key returns the cache key for a profile handle.
func (b KeyBuilder) Key(handle string) string {
	normalized := strings.ToLower(strings.TrimSpace(handle))
	return strings.Join([]string{b.Namespace, b.Provider, b.EntityType, normalized, b.Version}, ":")
}

// Prefix returns the key prefix shared by every entry of this builder,
// useful for targeted invalidation in backends that support it.
func (b KeyBuilder) Prefix() string {
	return strings.Join([]string{b.Namespace, b.Provider, b.EntityType}, ":") + ":"
}
