package cache

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "fanout:account"

// Key identifies the cached payload of a single account.
type Key struct {
	AccountID string
}

// String returns the Redis key, e.g. "fanout:account:a1".
// Account IDs are opaque: they are used byte for byte, whitespace included,
// so two IDs that address different upstream URLs never share a key.
func (k Key) String() string {
	return KeyPrefix + ":" + k.AccountID
}
