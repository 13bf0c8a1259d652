package build

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Fingerprint records the inputs of the last successful build.
type Fingerprint struct {
	Definitions     string
	DefinitionsHash string
	// Sources maps every file read during the build to its hash.
	Sources map[string]string
	Package string
	BuiltAt time.Time
}

// Cache persists the fingerprint of the last build so unchanged inputs can
// skip rebuilding.
type Cache struct {
	cacheDir string
	hasher   *FileHasher
	mu       sync.Mutex
}

// NewCache creates a new build cache
func NewCache(cacheDir string) *Cache {
	return &Cache{
		cacheDir: cacheDir,
		hasher:   NewFileHasher(),
	}
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.cacheDir, "fingerprint.gob")
}

// Fresh reports whether the package at pkgPath was built from the current
// contents of the definitions file and every source it read.
func (c *Cache) Fresh(defsPath, pkgPath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp, err := c.load()
	if err != nil || fp == nil {
		return false
	}

	if fp.Definitions != defsPath || fp.Package != pkgPath {
		return false
	}
	if _, err := os.Stat(pkgPath); err != nil {
		return false
	}

	sum, err := c.hasher.HashFile(defsPath)
	if err != nil || sum != fp.DefinitionsHash {
		return false
	}

	for path, want := range fp.Sources {
		got, err := c.hasher.HashFile(path)
		if err != nil || got != want {
			return false
		}
	}
	return true
}

// Record stores the fingerprint of a finished build.
func (c *Cache) Record(defsPath, pkgPath string, sources []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	defsHash, err := c.hasher.HashFile(defsPath)
	if err != nil {
		return fmt.Errorf("failed to hash definitions: %w", err)
	}
	sums, err := c.hasher.HashFiles(sources)
	if err != nil {
		return fmt.Errorf("failed to hash sources: %w", err)
	}

	return c.persist(&Fingerprint{
		Definitions:     defsPath,
		DefinitionsHash: defsHash,
		Sources:         sums,
		Package:         pkgPath,
		BuiltAt:         time.Now(),
	})
}

// Clear removes the stored fingerprint
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.indexPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// load loads the fingerprint from disk
func (c *Cache) load() (*Fingerprint, error) {
	file, err := os.Open(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cache to load
		}
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}
	defer file.Close()

	var fp Fingerprint
	if err := gob.NewDecoder(file).Decode(&fp); err != nil {
		return nil, fmt.Errorf("failed to decode cache: %w", err)
	}
	return &fp, nil
}

// persist saves the fingerprint to disk
func (c *Cache) persist(fp *Fingerprint) error {
	// Ensure cache directory exists
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	indexPath := c.indexPath()

	// Create temporary file
	tmpPath := indexPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(fp); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	file.Close()

	// Atomic rename
	if err := os.Rename(tmpPath, indexPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save cache: %w", err)
	}

	return nil
}
