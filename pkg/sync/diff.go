package sync

import (
	"sort"
)

// DiffResult contains the paths that have to change for a replica to match
// its source. Each path appears in at most one of the lists, and every list
// is sorted.
type DiffResult struct {
	// Added are paths that only exist in the source.
	Added []string

	// Removed are paths that only exist in the replica.
	Removed []string

	// Modified are files that exist on both sides with different contents.
	Modified []string

	// Replaced are paths that exist on both sides, but are a file on one
	// side and a directory on the other.
	Replaced []string
}

// Empty returns whether the replica already matches the source.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 &&
		len(d.Modified) == 0 && len(d.Replaced) == 0
}

// Diff compares the manifests of a source and a replica tree.
func Diff(source, replica Manifest) (diff DiffResult) {
	for path, exp := range source {
		curr, ok := replica[path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, path)
		case exp.Kind != curr.Kind:
			diff.Replaced = append(diff.Replaced, path)
		case exp.Kind == FileKind && exp.Digest != curr.Digest:
			diff.Modified = append(diff.Modified, path)
		}
	}

	for path := range replica {
		if _, ok := source[path]; !ok {
			diff.Removed = append(diff.Removed, path)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Replaced)
	return diff
}
