package domain

import (
	"regexp"
	"strings"
)

// postURLPattern matches bsky.app post URLs and captures the author handle
// (or DID) and the record key.
var postURLPattern = regexp.MustCompile(`^https?://(?:www\.)?bsky\.app/profile/([^/]+)/post/([^/?#]+)$`)

// PostURLExample is quoted in validation messages.
const PostURLExample = "https://bsky.app/profile/HANDLE/post/RKEY"

// IsPostURL reports whether s, ignoring surrounding whitespace, is a bsky.app post URL.
func IsPostURL(s string) bool {
	return postURLPattern.MatchString(strings.TrimSpace(s))
}

// SplitPostURL returns the author handle and record key of a bsky.app post URL.
// ok is false when s is not a post URL.
func SplitPostURL(s string) (handle, rkey string, ok bool) {
	m := postURLPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
