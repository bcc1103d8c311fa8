package remote

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// keyPrefix is the folder inside the bucket that holds poster images.
const keyPrefix = "posters/"

// StorageLayout knows the URL conventions of the object-storage API.
type StorageLayout struct {
	BaseURL string
	Bucket  string
}

// NormalizeKey trims a stored key and strips a redundant leading "<bucket>/"
// segment, so "images/posters/a.png" and "posters/a.png" address the same object.
func (l StorageLayout) NormalizeKey(key string) string {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if l.Bucket != "" {
		key = strings.TrimPrefix(key, l.Bucket+"/")
	}
	return key
}

// ObjectURL is the authenticated endpoint used for upload and delete.
func (l StorageLayout) ObjectURL(key string) string {
	return l.BaseURL + "/storage/v1/object/" + url.PathEscape(l.Bucket) + "/" + escapeKey(l.NormalizeKey(key))
}

// PublicURL is the anonymous read URL of an object.
func (l StorageLayout) PublicURL(key string) string {
	return l.BaseURL + "/storage/v1/object/public/" + url.PathEscape(l.Bucket) + "/" + escapeKey(l.NormalizeKey(key))
}

// escapeKey escapes each path segment but keeps the separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// StorageKey derives the object key for an uploaded file:
// posters/<unix millis>_<sanitized filename>.
func StorageKey(now time.Time, filename string) string {
	return keyPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + SanitizeFilename(filename)
}

// SanitizeFilename replaces every character other than ASCII letters, digits,
// '.' and '-' with '_'. Directory components are dropped first.
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
