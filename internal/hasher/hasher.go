// Package hasher computes the content fingerprints used to detect changed files.
//
// A fingerprint is the SHA-256 digest of the content, hex encoded in upper case.
// The same representation is used for file contents and for the serialized manifest.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Sum returns the fingerprint of b.
func Sum(b []byte) string {
	sum := sha256.Sum256(b)
	return encode(sum[:])
}

// SumReader returns the fingerprint of everything read from r.
func SumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return encode(h.Sum(nil)), nil
}

// SumFile returns the fingerprint of the file at path.
func SumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	fp, err := SumReader(file)
	if err != nil {
		return "", fmt.Errorf("hash '%s': %w", path, err)
	}
	return fp, nil
}

// Writer fingerprints everything written to it.
type Writer struct {
	h hash.Hash
}

func NewWriter() *Writer {
	return &Writer{h: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Sum returns the fingerprint of the bytes written so far.
func (w *Writer) Sum() string {
	return encode(w.h.Sum(nil))
}

// IsValid reports whether fp looks like a fingerprint. Either case is accepted.
func IsValid(fp string) bool {
	if len(fp) != Size {
		return false
	}
	_, err := hex.DecodeString(fp)
	return err == nil
}

// Equal compares two fingerprints ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

func encode(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}
