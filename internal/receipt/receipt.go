package receipt

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotFound is returned when an expense, preference record or stored object does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a caller addresses data owned by another user.
var ErrForbidden = errors.New("forbidden")

const keyPrefix = "receipts"

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// storageKey builds receipts/{userID}/{id}_{file}
func storageKey(userID, id, fileName string) string {
	return path.Join(keyPrefix, userID, fmt.Sprintf("%s_%s", id, sanitizeFilename(fileName)))
}

// ownsKey reports whether key sits under the user's prefix
func ownsKey(userID, key string) bool {
	if userID == "" || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, path.Join(keyPrefix, userID)+"/")
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, " ")
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "-")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" || base == "." {
		base = "receipt"
	}
	if ext == "." || unsafeChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return base + ext
}

// contentTypeFor guesses the MIME type from a key's extension
func contentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
