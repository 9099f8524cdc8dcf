package blob

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// ContentType resolves the content type of key by extension, then by sniffing
// the file at localPath when one is given.
func ContentType(key string, localPath string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}

	if localPath != "" {
		if mt, err := mimetype.DetectFile(localPath); err == nil {
			return mt.String()
		}
	}
	return defaultContentType
}

func isTextLike(key string) bool {
	return strings.HasSuffix(key, ".yaml") ||
		strings.HasSuffix(key, ".yml") ||
		strings.HasSuffix(key, ".toml") ||
		strings.HasSuffix(key, ".md")
}
