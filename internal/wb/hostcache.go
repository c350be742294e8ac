package wb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// HostCache remembers the last-known-good content host per volume bucket.
// Entries are advisory hints only: a stale entry just costs extra probes, so
// there is no expiry. The file format matches the original host_cache.json:
//
//	{"products": {"<vol>": "<hostToken>"}}
type HostCache struct {
	mu   sync.Mutex
	path string
	// vol bucket -> host token, keys kept as strings for the file format
	products map[string]string
}

// LoadHostCache reads the cache file at path. A missing or empty file yields an
// empty cache, never an error; a corrupt file is logged and discarded.
func LoadHostCache(path string) *HostCache {
	c := &HostCache{path: path, products: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read host cache, starting empty", "path", path, "error", err)
		}
		return c
	}
	if len(data) == 0 {
		return c
	}

	var file struct {
		Products map[string]string `json:"products"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("Host cache is corrupt, starting empty", "path", path, "error", err)
		return c
	}
	if file.Products != nil {
		c.products = file.Products
	}
	return c
}

// Get returns the cached host token for the volume bucket, if any.
func (c *HostCache) Get(vol int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	host, ok := c.products[strconv.Itoa(vol)]
	return host, ok
}

// Put records the host token for the volume bucket and persists the cache.
// Persistence failures are logged only: the cache is an optimization and the
// in-memory entry still serves the current process.
func (c *HostCache) Put(vol int, host string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strconv.Itoa(vol)
	if c.products[key] == host {
		return
	}
	c.products[key] = host

	if err := c.save(); err != nil {
		slog.Warn("Failed to persist host cache", "path", c.path, "error", err)
	}
}

func (c *HostCache) save() error {
	file := struct {
		Products map[string]string `json:"products"`
	}{Products: c.products}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal host cache: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}
