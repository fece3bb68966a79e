// Package diff classifies records against their previously exported
// artifacts. The classification is what makes a run idempotent: unchanged
// records cause zero filesystem writes.
package diff

import (
	"github.com/Napageneral/zedsync/internal/artifact"
	"github.com/Napageneral/zedsync/internal/fingerprint"
)

// Class is the sync decision for one record.
type Class int

const (
	// New: no prior artifact exists for the durable key.
	New Class = iota
	// Unchanged: the prior artifact carries the same fingerprint; the file
	// is left untouched.
	Unchanged
	// Updated: the prior artifact carries a different fingerprint and is
	// replaced in place.
	Updated
)

func (c Class) String() string {
	switch c {
	case New:
		return "new"
	case Unchanged:
		return "unchanged"
	default:
		return "updated"
	}
}

// Classify compares a freshly computed fingerprint against the header
// recovered from the prior artifact, if any.
func Classify(prior *artifact.Header, fp fingerprint.Fingerprint) Class {
	switch {
	case prior == nil:
		return New
	case prior.Fingerprint == string(fp):
		return Unchanged
	default:
		return Updated
	}
}
