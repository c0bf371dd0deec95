package engine

import "github.com/roeyazroel/linear-sync/internal/filter"

// MergeByID combines base with delta by identity. The result holds every
// delta item, then every base item whose identity is absent from delta, each
// in its original order. Delta wins ties; duplicates keep the first occurrence.
func MergeByID[T any](base, delta []T, id func(T) string) []T {
	out := make([]T, 0, len(base)+len(delta))
	seen := make(map[string]bool, len(base)+len(delta))
	for _, item := range delta {
		k := id(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	for _, item := range base {
		k := id(item)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return out
}

func indexedIssueID(ix filter.IndexedIssue) string { return ix.ID }

// mergeIssues merges a delta into a cached list. Delta issues that no longer
// satisfy keep are removed from the list instead of being merged.
func mergeIssues(base, delta []filter.IndexedIssue, keep func(filter.IndexedIssue) bool) []filter.IndexedIssue {
	if keep == nil {
		return MergeByID(base, delta, indexedIssueID)
	}
	matching := make([]filter.IndexedIssue, 0, len(delta))
	dropped := make(map[string]bool)
	for _, ix := range delta {
		if keep(ix) {
			matching = append(matching, ix)
		} else {
			dropped[ix.ID] = true
		}
	}
	remaining := base
	if len(dropped) > 0 {
		remaining = make([]filter.IndexedIssue, 0, len(base))
		for _, ix := range base {
			if !dropped[ix.ID] {
				remaining = append(remaining, ix)
			}
		}
	}
	return MergeByID(remaining, matching, indexedIssueID)
}
