// Package manifest holds the record of what was last synced to a destination:
// a map from root-relative path to content fingerprint, stored as JSON next to
// the synced files.
package manifest

import (
	"maps"
	"slices"

	"github.com/lostsignal/bunnysync/internal/hasher"
)

// FileName is the name of the manifest object inside the destination folder.
const FileName = "manifest.json"

// Manifest maps a relative path ("/" separated, no leading slash) to its fingerprint.
type Manifest map[string]string

func New() Manifest {
	return make(Manifest)
}

func (m Manifest) Clone() Manifest {
	if m == nil {
		return New()
	}
	return maps.Clone(m)
}

// Equal reports whether both manifests hold the same paths with the same fingerprints.
func (m Manifest) Equal(other Manifest) bool {
	return maps.EqualFunc(m, other, hasher.Equal)
}

// Paths returns every path in lexical order.
func (m Manifest) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}
