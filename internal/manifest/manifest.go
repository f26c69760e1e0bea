package manifest

import (
	"path"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// CacheURLPrefix is the relative prefix the display uses to resolve cached files.
const CacheURLPrefix = "cache"

// Entry is one remote object that has been fetched into the local cache.
type Entry struct {
	URL          string `json:"url"`
	Key          string `json:"key"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size,omitempty"`
}

// Descriptor is one object as reported by a remote listing. It only lives for
// a single sync pass and becomes an Entry once downloaded.
type Descriptor struct {
	Key          string `json:"key"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size"`
	Folder       string `json:"folder,omitempty"`
}

// NewDescriptor builds a descriptor with the folder derived from the key.
func NewDescriptor(key string, lastModified time.Time, size int64) Descriptor {
	return Descriptor{
		Key:          key,
		LastModified: lastModified.UTC().Format(time.RFC3339),
		Size:         size,
		Folder:       FolderOf(key),
	}
}

// FolderOf returns the first path segment of a key, or "" for top level keys.
func FolderOf(key string) string {
	folder, _, found := strings.Cut(key, "/")
	if !found {
		return ""
	}
	return folder
}

// URLFor returns the cache relative url recorded for a key.
func URLFor(key string) string {
	return path.Join(CacheURLPrefix, key)
}

// EntryFromDescriptor converts a downloaded descriptor into a manifest entry.
func EntryFromDescriptor(d Descriptor) Entry {
	return Entry{
		URL:          URLFor(d.Key),
		Key:          d.Key,
		LastModified: d.LastModified,
		Size:         d.Size,
	}
}

// Manifest is the ordered list of cached entries. Keys are unique.
type Manifest []Entry

// Keys returns the key set of the manifest.
func (m Manifest) Keys() mapset.Set[string] {
	keys := mapset.NewThreadUnsafeSetWithSize[string](len(m))
	for _, e := range m {
		keys.Add(e.Key)
	}
	return keys
}

func (m Manifest) Contains(key string) bool {
	return slices.ContainsFunc(m, func(e Entry) bool { return e.Key == key })
}

// Add appends entries whose key is not yet present. When the same key shows
// up more than once the first occurrence wins.
func (m Manifest) Add(entries ...Entry) Manifest {
	seen := m.Keys()
	out := slices.Clone(m)
	for _, e := range entries {
		if seen.Contains(e.Key) {
			continue
		}
		seen.Add(e.Key)
		out = append(out, e)
	}
	return out
}

// Without drops every entry whose key matches one of the removed entries.
func (m Manifest) Without(removed []Entry) Manifest {
	keys := mapset.NewThreadUnsafeSetWithSize[string](len(removed))
	for _, r := range removed {
		keys.Add(r.Key)
	}

	out := make(Manifest, 0, len(m))
	for _, e := range m {
		if keys.Contains(e.Key) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SortedByLastModified returns a copy ordered by lastModified. Entries with an
// unparsable timestamp sort last in either direction.
func (m Manifest) SortedByLastModified(newestFirst bool) Manifest {
	out := slices.Clone(m)
	slices.SortStableFunc(out, func(a, b Entry) int {
		ta, errA := time.Parse(time.RFC3339, a.LastModified)
		tb, errB := time.Parse(time.RFC3339, b.LastModified)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		if newestFirst {
			return tb.Compare(ta)
		}
		return ta.Compare(tb)
	})
	return out
}
