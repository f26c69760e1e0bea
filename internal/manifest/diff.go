package manifest

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Changes is the outcome of one diff pass. Neither list is ordered.
type Changes struct {
	ToDownload []Descriptor `json:"toDownload"`
	ToDelete   []Entry      `json:"toDelete"`
}

func (c *Changes) HasChanges() bool {
	return len(c.ToDownload) > 0 || len(c.ToDelete) > 0
}

// Diff compares the current manifest against the authoritative remote listing.
// Objects present on both sides are left alone even if their size or
// lastModified changed remotely.
func Diff(current Manifest, remote []Descriptor) *Changes {
	currentKeys := current.Keys()
	remoteKeys := mapset.NewThreadUnsafeSetWithSize[string](len(remote))
	for _, d := range remote {
		remoteKeys.Add(d.Key)
	}

	changes := &Changes{
		ToDownload: make([]Descriptor, 0),
		ToDelete:   make([]Entry, 0),
	}

	// a listing never repeats a key, but a hand written payload might
	queued := mapset.NewThreadUnsafeSet[string]()
	for _, d := range remote {
		if currentKeys.Contains(d.Key) || !queued.Add(d.Key) {
			continue
		}
		changes.ToDownload = append(changes.ToDownload, d)
	}

	for _, e := range current {
		if !remoteKeys.Contains(e.Key) {
			changes.ToDelete = append(changes.ToDelete, e)
		}
	}

	return changes
}
