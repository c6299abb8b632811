package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack"
)

const cacheVersion = 1

// ErrStaleCache is returned when the cache was built from a different data file state
var ErrStaleCache = errors.New("uniques cache is stale")

// uniquesCache is the on-disk form of Uniques
type uniquesCache struct {
	Version     int                            `msgpack:"version"`
	SourceSize  int64                          `msgpack:"source_size"`
	SourceMTime int64                          `msgpack:"source_mtime"`
	Fields      map[string]map[string][]string `msgpack:"fields"`
}

// CachePath returns the cache file used for a data file: data/Merged.csv -> data/Merged.uniques.msgpack
func CachePath(dataPath string) string {
	base := strings.TrimSuffix(dataPath, filepath.Ext(dataPath))
	return base + ".uniques.msgpack"
}

// WriteUniquesCache stores the index, stamped with the size and mtime of the data file
// it was built from (looked up from the cache path's data file when it exists).
func WriteUniquesCache(cachePath string, u *Uniques) error {
	return writeUniquesCache(cachePath, u, sourceFor(cachePath))
}

// WriteUniquesCacheFor stores the index stamped with the given data file
func WriteUniquesCacheFor(cachePath, dataPath string, u *Uniques) error {
	return writeUniquesCache(cachePath, u, dataPath)
}

func writeUniquesCache(cachePath string, u *Uniques, dataPath string) error {
	c := uniquesCache{
		Version: cacheVersion,
		Fields:  make(map[string]map[string][]string, len(u.fields)),
	}
	if dataPath != "" {
		if info, err := os.Stat(dataPath); err == nil {
			c.SourceSize = info.Size()
			c.SourceMTime = info.ModTime().UnixNano()
		}
	}
	for f, byModel := range u.fields {
		models := make(map[string][]string, len(byModel))
		for m, set := range byModel {
			models[m] = sortedLabels(f, set)
		}
		c.Fields[f.String()] = models
	}

	data, err := msgpack.Marshal(&c)
	if err != nil {
		return fmt.Errorf("failed to encode uniques: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return os.WriteFile(cachePath, data, 0644)
}

// ReadUniquesCache loads a cached index. When dataPath is set the cache must have been
// stamped with that file's current size and mtime, otherwise ErrStaleCache is returned.
func ReadUniquesCache(cachePath, dataPath string) (*Uniques, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}

	var c uniquesCache
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode uniques cache: %w", err)
	}
	if c.Version != cacheVersion {
		return nil, fmt.Errorf("%w: version %d", ErrStaleCache, c.Version)
	}
	if dataPath != "" {
		info, err := os.Stat(dataPath)
		if err != nil {
			return nil, err
		}
		if info.Size() != c.SourceSize || info.ModTime().UnixNano() != c.SourceMTime {
			return nil, ErrStaleCache
		}
	}

	u := &Uniques{fields: make(map[Field]map[string]valueSet, len(c.Fields))}
	for name, models := range c.Fields {
		f, err := ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("uniques cache: %w", err)
		}
		byModel := make(map[string]valueSet, len(models))
		for m, values := range models {
			set := make(valueSet, len(values))
			for _, v := range values {
				set[v] = struct{}{}
			}
			byModel[m] = set
		}
		u.fields[f] = byModel
	}
	return u, nil
}

// sourceFor guesses the data file a cache path belongs to
func sourceFor(cachePath string) string {
	base := strings.TrimSuffix(cachePath, ".uniques.msgpack")
	for _, ext := range []string{".csv", ".xlsx", ".xlsm", ".txt"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return ""
}
