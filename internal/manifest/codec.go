package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/hasher"
)

var ErrMalformed = errors.New("manifest: malformed")

// Encode serializes m as a compact JSON object with sorted keys.
func Encode(m Manifest) ([]byte, error) {
	if m == nil {
		m = New()
	}
	data, err := jsonMarshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Decode parses a serialized manifest. Fingerprints are normalized to upper case.
func Decode(data []byte) (Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	var raw map[string]string
	if err := jsonUnmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	m := make(Manifest, len(raw))
	for relPath, fp := range raw {
		if err := validatePath(relPath); err != nil {
			return nil, err
		}
		if !hasher.IsValid(fp) {
			return nil, fmt.Errorf("%w: invalid fingerprint %q for '%s'", ErrMalformed, fp, relPath)
		}
		m[relPath] = strings.ToUpper(fp)
	}
	return m, nil
}

// validatePath accepts every root-relative path a scan can produce. Blanks and
// backslashes are legal in file names and stay part of the key.
func validatePath(relPath string) error {
	switch {
	case relPath == "":
		return fmt.Errorf("%w: empty path", ErrMalformed)
	case path.IsAbs(relPath):
		return fmt.Errorf("%w: path '%s' is not relative", ErrMalformed, relPath)
	case blob.CleanKey(relPath) != relPath:
		return fmt.Errorf("%w: path '%s' is not normalized", ErrMalformed, relPath)
	}
	return nil
}
