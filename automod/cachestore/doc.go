// Named string caches with a TTL: in-process LRU, redis (with a small local tier), and memcached.
//
// The action executor keeps its idempotency records here. A successful hide or delete is stored under (platform, comment, action), so a repeat within the TTL returns the recorded outcome without calling the platform.
package cachestore
