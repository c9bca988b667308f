// Package cache stores catalog responses in Redis so later requests for the same
// status can be revalidated with If-None-Match / If-Modified-Since.
//
// The cache never answers a request on its own. A stored entry is only used when
// the upstream confirms it with 304 Not Modified, so a request that cannot reach
// the catalog still fails the way it would without a cache.
//
// Entries expire after a fixed TTL (default 5 minutes). Keys are deterministic:
//
//	petstore:pet/findByStatus:status=available
package cache
