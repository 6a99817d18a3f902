package sync

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/sidkik/foldersync/pkg/errors"
)

// DigestCache remembers file digests between passes so that files whose size
// and modification time haven't changed aren't read again. It's safe for
// concurrent use.
//
// A file that's rewritten with the same size within the filesystem's
// timestamp granularity keeps its old digest until it's evicted.
type DigestCache struct {
	cache *lru.Cache // cacheKey->string
}

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// NewDigestCache creates a cache that holds up to `size` digests.
func NewDigestCache(size int) (*DigestCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.WithContext(err, "create lru")
	}
	return &DigestCache{cache: cache}, nil
}

// HashFile returns the digest of the file at `path`, reading it only if it
// changed since the last call. A nil cache always reads the file.
func (c *DigestCache) HashFile(path string) (string, error) {
	if c == nil {
		return HashFile(path)
	}

	fi, err := fs.Stat(path)
	if err != nil {
		return "", errors.WithContext(err, "stat")
	}

	key := cacheKey{path: path, size: fi.Size(), modTime: fi.ModTime().UnixNano()}
	if digest, ok := c.cache.Get(key); ok {
		return digest.(string), nil
	}

	digest, err := HashFile(path)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, digest)
	return digest, nil
}

// Len returns the number of cached digests.
func (c *DigestCache) Len() int {
	return c.cache.Len()
}
