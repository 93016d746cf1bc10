package cache

import (
	"fmt"
	"strings"
)

// Namespace is the prefix for every Nova cache key.
const Namespace = "nova"

// MissSentinel is the reserved value written by SetNegative. It is checked on
// every read so a cached miss never decodes as a user value.
const MissSentinel = "__nova_cache_miss__"

// invalidatedSuffix marks the companion key carrying the invalidation
// timestamp for versioned entries.
const invalidatedSuffix = ":invalidated_at"

// Key builds a namespaced cache key: nova:<scope>:<type>:<id>.
func Key(scope, typ, id string) string {
	return fmt.Sprintf("%s:%s:%s:%s", Namespace, scope, typ, id)
}

// VersionedKey builds a key with an explicit schema version suffix:
// nova:<scope>:<type>:<id>:v<N>.
func VersionedKey(scope, typ, id string, version int) string {
	return fmt.Sprintf("%s:%s:%s:%s:v%d", Namespace, scope, typ, id, version)
}

// InvalidationKey returns the companion key holding the invalidated_at
// timestamp for the given key.
func InvalidationKey(key string) string {
	return key + invalidatedSuffix
}

// Pattern builds a SCAN pattern for all keys of a scope and type.
func Pattern(scope, typ string) string {
	return fmt.Sprintf("%s:%s:%s:*", Namespace, scope, typ)
}

// IsNamespaced reports whether the key carries the nova prefix. Write paths
// reject un-namespaced keys to keep SCAN patterns bounded.
func IsNamespaced(key string) bool {
	return strings.HasPrefix(key, Namespace+":")
}
