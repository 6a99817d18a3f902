package sync

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Report describes the changes made to a replica during a pass.
type Report struct {
	Added    []string
	Removed  []string
	Modified []string
	Replaced []string

	// DryRun is set if the changes were only computed and not applied.
	DryRun bool
}

// Empty returns whether the pass didn't change anything.
func (r Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 &&
		len(r.Modified) == 0 && len(r.Replaced) == 0
}

// Log writes one entry for each category of change that isn't empty. The
// categories are always logged in the same order so that the output of a
// pass stays grouped.
func (r Report) Log(logger logrus.FieldLogger) {
	categories := []struct {
		name  string
		paths []string
	}{
		{"Added", r.Added},
		{"Removed", r.Removed},
		{"Modified", r.Modified},
		{"Replaced", r.Replaced},
	}

	for _, category := range categories {
		if len(category.paths) == 0 {
			continue
		}

		msg := fmt.Sprintf("%s files: %s", category.name, strings.Join(category.paths, "; "))
		if r.DryRun {
			msg = "(dry run) " + msg
		}
		logger.WithField("count", len(category.paths)).Info(msg)
	}
}
