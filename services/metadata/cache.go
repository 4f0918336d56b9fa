package metadata

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fileCache persists API responses on disk between runs. Entry TTLs are
// deterministically jittered per key so a whole catalog enriched in one
// batch does not expire in one batch.
type fileCache struct {
	dir string
	ttl time.Duration
}

func newFileCache(dir string, ttlHours int) *fileCache {
	return &fileCache{dir: dir, ttl: time.Duration(ttlHours) * time.Hour}
}

// jitteredTTL staggers expiry between ttl and ttl + 6h, derived from the
// key hash so a key always gets the same window.
func (c *fileCache) jitteredTTL(key string) time.Duration {
	h := sha256.Sum256([]byte(key))
	n := binary.BigEndian.Uint64(h[:8])
	return c.ttl + time.Duration(n%uint64(6*time.Hour))
}

func (c *fileCache) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:16])+".json")
}

func (c *fileCache) get(key string, v any) bool {
	if key == "" {
		return false
	}
	path := c.path(key)
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(fi.ModTime()) > c.jitteredTTL(key) {
		_ = os.Remove(path)
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (c *fileCache) set(key string, v any) error {
	if key == "" {
		return errors.New("empty cache key")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// clear drops every cached response, used when the API key changes.
func (c *fileCache) clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		_ = os.Remove(filepath.Join(c.dir, entry.Name()))
	}
	return nil
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
