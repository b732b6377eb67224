package tasks

import (
	"sort"

	"github.com/natanlao/rdx/internal/models"
)

// SetDiff is the result of comparing two sets of names.
type SetDiff struct {
	Add    []string // in source but not destination
	Remove []string // in destination but not source
}

// Empty reports whether the diff requires no mutations.
func (d SetDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// ComputeSetDiff computes {Add: src−dst, Remove: dst−src} as hashed set
// difference. Results are sorted so apply order is deterministic.
func ComputeSetDiff(src, dst map[string]struct{}) SetDiff {
	var diff SetDiff
	for name := range src {
		if _, ok := dst[name]; !ok {
			diff.Add = append(diff.Add, name)
		}
	}
	for name := range dst {
		if _, ok := src[name]; !ok {
			diff.Remove = append(diff.Remove, name)
		}
	}
	sort.Strings(diff.Add)
	sort.Strings(diff.Remove)
	return diff
}

// SavedDiff is the result of comparing two saved-item sequences.
//
// Save preserves the source's oldest-first relative order; Unsave carries no
// ordering contract.
type SavedDiff struct {
	Save   []models.SavedItem // in source but not destination, source order
	Unsave []models.SavedItem // in destination but not source
}

// Empty reports whether the diff requires no mutations.
func (d SavedDiff) Empty() bool {
	return len(d.Save) == 0 && len(d.Unsave) == 0
}

// ComputeSavedDiff computes the saved-item diff between two oldest-first
// sequences. Identity is (kind, id); metadata differences never produce a
// save or unsave.
//
// Unsave is strictly one-directional (destination minus source): items the
// destination saved on its own, and only those, are removed. Save is the
// subsequence of src absent from dst, kept in src order — Reddit prepends
// each newly saved item to the listing, so saving oldest to newest
// reproduces the source's chronological order on the destination.
func ComputeSavedDiff(src, dst []models.SavedItem) SavedDiff {
	srcKeys := make(map[models.ItemKey]struct{}, len(src))
	for _, item := range src {
		srcKeys[item.Key()] = struct{}{}
	}
	dstKeys := make(map[models.ItemKey]struct{}, len(dst))
	for _, item := range dst {
		dstKeys[item.Key()] = struct{}{}
	}

	var diff SavedDiff
	for _, item := range src {
		if _, ok := dstKeys[item.Key()]; !ok {
			diff.Save = append(diff.Save, item)
		}
	}
	for _, item := range dst {
		if _, ok := srcKeys[item.Key()]; !ok {
			diff.Unsave = append(diff.Unsave, item)
		}
	}
	return diff
}
