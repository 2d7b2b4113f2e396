// This file holds the photo pass progress cache. It exists to make
// repeated passes over a large catalog cheap: records already migrated
// or known to have no photos on the legacy server are skipped without
// touching the network. The cache is disposable; deleting it only costs
// re-probing.

package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Cache tracks which external ids the photo pass has already settled.
type Cache struct {
	mu          sync.Mutex
	path        string
	migrated    map[int64]bool
	unavailable map[int64]bool
}

type cacheFile struct {
	MigratedIDs    []int64 `json:"migrated_ids"`
	UnavailableIDs []int64 `json:"unavailable_ids"`
}

// LoadCache reads the cache at path. A missing file yields an empty
// cache, never an error.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{
		path:        path,
		migrated:    make(map[int64]bool),
		unavailable: make(map[int64]bool),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for _, id := range file.MigratedIDs {
		c.migrated[id] = true
	}
	for _, id := range file.UnavailableIDs {
		c.unavailable[id] = true
	}
	return c, nil
}

// IsSettled reports whether the photo pass can skip this id entirely.
func (c *Cache) IsSettled(externalID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.migrated[externalID] || c.unavailable[externalID]
}

// MarkMigrated records a completed photo migration and persists.
func (c *Cache) MarkMigrated(externalID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.migrated[externalID] = true
	return c.save()
}

// MarkUnavailable records that the legacy server has no photos for this
// id and persists.
func (c *Cache) MarkUnavailable(externalID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable[externalID] = true
	return c.save()
}

// Delete removes the cache file. Called when a pass finishes with no
// remaining work, so the next run starts clean.
func (c *Cache) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.migrated = make(map[int64]bool)
	c.unavailable = make(map[int64]bool)
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// save must be called with c.mu held. Temp file plus rename keeps the
// cache readable even if the process dies mid-write.
func (c *Cache) save() error {
	file := cacheFile{
		MigratedIDs:    sortedKeys(c.migrated),
		UnavailableIDs: sortedKeys(c.unavailable),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(c.path), "."+filepath.Base(c.path)+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func sortedKeys(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
