package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "petstore"

// Key identifies a cached catalog response.
type Key struct {
	// Endpoint is the request path relative to the catalog base URL (e.g. "/pet/findByStatus").
	Endpoint string

	// Query holds the request query parameters.
	Query url.Values
}

// String renders a deterministic Redis key. Query parameters are sorted by name.
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		parts = append(parts, name+"="+strings.Join(values, ","))
	}

	return strings.Join(parts, ":")
}
