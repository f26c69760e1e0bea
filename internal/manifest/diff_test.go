package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func entry(key string) Entry {
	return Entry{Key: key, URL: URLFor(key), LastModified: "2024-01-01T00:00:00Z"}
}

func desc(key string) Descriptor {
	return Descriptor{Key: key, LastModified: "2024-01-01T00:00:00Z", Size: 10, Folder: FolderOf(key)}
}

func downloadKeys(c *Changes) []string {
	keys := make([]string, 0, len(c.ToDownload))
	for _, d := range c.ToDownload {
		keys = append(keys, d.Key)
	}
	return keys
}

func deleteKeys(c *Changes) []string {
	keys := make([]string, 0, len(c.ToDelete))
	for _, e := range c.ToDelete {
		keys = append(keys, e.Key)
	}
	return keys
}

func TestDiff_TableDriven(t *testing.T) {
	cases := []struct {
		name         string
		current      Manifest
		remote       []Descriptor
		wantDownload []string
		wantDelete   []string
	}{
		{
			name:         "add and remove",
			current:      Manifest{entry("a.jpg"), entry("b.jpg")},
			remote:       []Descriptor{desc("b.jpg"), desc("c.jpg")},
			wantDownload: []string{"c.jpg"},
			wantDelete:   []string{"a.jpg"},
		},
		{
			name:         "empty remote deletes everything",
			current:      Manifest{entry("a.jpg"), entry("samples/b.jpg")},
			remote:       nil,
			wantDownload: []string{},
			wantDelete:   []string{"a.jpg", "samples/b.jpg"},
		},
		{
			name:         "empty manifest downloads everything",
			current:      Manifest{},
			remote:       []Descriptor{desc("a.jpg"), desc("selfies/b.jpg")},
			wantDownload: []string{"a.jpg", "selfies/b.jpg"},
			wantDelete:   []string{},
		},
		{
			name:         "in sync",
			current:      Manifest{entry("a.jpg")},
			remote:       []Descriptor{desc("a.jpg")},
			wantDownload: []string{},
			wantDelete:   []string{},
		},
		{
			name:         "duplicate remote keys download once",
			current:      Manifest{},
			remote:       []Descriptor{desc("a.jpg"), desc("a.jpg")},
			wantDownload: []string{"a.jpg"},
			wantDelete:   []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			changes := Diff(tc.current, tc.remote)
			assert.ElementsMatch(t, tc.wantDownload, downloadKeys(changes))
			assert.ElementsMatch(t, tc.wantDelete, deleteKeys(changes))
		})
	}
}

func TestDiff_OutputsAreDisjointFromInputs(t *testing.T) {
	current := Manifest{entry("a.jpg"), entry("b.jpg"), entry("x/c.jpg")}
	remote := []Descriptor{desc("b.jpg"), desc("x/c.jpg"), desc("d.jpg"), desc("y/e.jpg")}

	changes := Diff(current, remote)

	currentKeys := current.Keys()
	for _, d := range changes.ToDownload {
		assert.False(t, currentKeys.Contains(d.Key), "download %s already in manifest", d.Key)
	}

	remoteKeys := make(map[string]struct{})
	for _, d := range remote {
		remoteKeys[d.Key] = struct{}{}
	}
	for _, e := range changes.ToDelete {
		_, ok := remoteKeys[e.Key]
		assert.False(t, ok, "delete %s still on remote", e.Key)
	}
}

func TestDiff_Idempotent(t *testing.T) {
	current := Manifest{entry("a.jpg"), entry("b.jpg")}
	remote := []Descriptor{desc("b.jpg"), desc("c.jpg")}

	first := Diff(current, remote)
	second := Diff(current, remote)

	assert.ElementsMatch(t, first.ToDownload, second.ToDownload)
	assert.ElementsMatch(t, first.ToDelete, second.ToDelete)
}

func TestDiff_MetadataChangeIsNotADownload(t *testing.T) {
	current := Manifest{{Key: "a.jpg", LastModified: "2024-01-01T00:00:00Z", Size: 1}}
	remote := []Descriptor{{Key: "a.jpg", LastModified: "2025-06-01T00:00:00Z", Size: 2}}

	changes := Diff(current, remote)
	assert.False(t, changes.HasChanges())
}
