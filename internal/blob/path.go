package blob

import (
	"path"
	"strings"
)

// NormalizePath cleans a user supplied zone or folder name. Backslashes become
// separators and surrounding blanks are dropped before the path is cleaned.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimSpace(p)
	return CleanKey(p)
}

// CleanKey collapses duplicate separators, resolves dot segments and strips
// leading and trailing slashes. Every other byte is kept, so file names with
// blanks or backslashes map onto distinct keys.
func CleanKey(p string) string {
	if p == "" {
		return ""
	}

	// rooting the path keeps ".." from climbing above it
	p = path.Clean("/" + p)
	return strings.Trim(p, "/")
}

// DestinationPath joins the non-blank segments with "/" and normalizes the result.
// The first segment is the storage zone and can never be escaped by the rest.
func DestinationPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if n := NormalizePath(s); n != "" {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	zone := parts[0]
	tail := NormalizePath(strings.Join(parts[1:], "/"))
	if tail == "" {
		return zone
	}
	return zone + "/" + tail
}

// SplitKey splits a zone-rooted key into the zone and the object path inside it.
func SplitKey(key string) (zone string, object string) {
	key = CleanKey(key)
	zone, object, _ = strings.Cut(key, "/")
	return zone, object
}

// Destination is the remote location a local directory mirrors into.
type Destination struct {
	Zone   string
	Folder string
}

// Path returns the destination key of a root-relative path. The relative path
// is taken verbatim apart from dot segments and duplicate separators.
func (d Destination) Path(rel string) string {
	prefix := d.String()
	key := CleanKey(rel)
	switch {
	case key == "":
		return prefix
	case prefix == "":
		return key
	}
	return prefix + "/" + key
}

func (d Destination) String() string {
	return DestinationPath(d.Zone, d.Folder)
}
