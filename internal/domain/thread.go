package domain

import (
	"fmt"
	"strings"
)

// ThreadKind distinguishes the three shapes a post thread lookup can return.
type ThreadKind int

const (
	// ThreadNotFound means the post does not exist or was deleted.
	ThreadNotFound ThreadKind = iota + 1
	// ThreadBlocked means the viewer is blocked from reading the post.
	ThreadBlocked
	// ThreadFound carries a readable post.
	ThreadFound
)

func (k ThreadKind) String() string {
	switch k {
	case ThreadNotFound:
		return "not_found"
	case ThreadBlocked:
		return "blocked"
	case ThreadFound:
		return "found"
	default:
		return "unknown"
	}
}

// Post is a readable Bluesky post with its engagement counters.
type Post struct {
	URI               string `json:"uri"`
	AuthorHandle      string `json:"author_handle"`
	AuthorDisplayName string `json:"author_display_name,omitempty"`
	Text              string `json:"text"`
	CreatedAt         string `json:"created_at,omitempty"`
	LikeCount         int    `json:"like_count"`
	RepostCount       int    `json:"repost_count"`
	ReplyCount        int    `json:"reply_count"`
}

// Thread is the decoded result of a thread lookup. Post is set only when
// Kind is ThreadFound.
type Thread struct {
	Kind ThreadKind
	URI  string
	Post *Post
}

// Text returns the post text, or a bracketed marker naming the URI when the
// post cannot be read. Callers treat markers as "no text".
func (t Thread) Text() string {
	switch t.Kind {
	case ThreadNotFound:
		return "[Post not found] URI: " + t.URI
	case ThreadBlocked:
		return "[Blocked post] URI: " + t.URI
	case ThreadFound:
		if t.Post == nil {
			return "[Post not found] URI: " + t.URI
		}
		return t.Post.Text
	default:
		return fmt.Sprintf("[Unknown thread kind %d] URI: %s", int(t.Kind), t.URI)
	}
}

// Describe renders a found post with author and engagement for the agent.
// Other kinds render as Text.
func (t Thread) Describe() string {
	if t.Kind != ThreadFound || t.Post == nil {
		return t.Text()
	}

	p := t.Post
	author := "@" + p.AuthorHandle
	if p.AuthorDisplayName != "" {
		author = fmt.Sprintf("%s (@%s)", p.AuthorDisplayName, p.AuthorHandle)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Author: %s\n", author)
	if p.CreatedAt != "" {
		fmt.Fprintf(&b, "Posted: %s\n", p.CreatedAt)
	}
	fmt.Fprintf(&b, "Text: %s\n", p.Text)
	fmt.Fprintf(&b, "Likes: %d, Reposts: %d, Replies: %d", p.LikeCount, p.RepostCount, p.ReplyCount)
	return b.String()
}

// IsMarker reports whether s is an empty fetch result or a bracketed marker
// produced for an unreadable post.
// Whitespace-only text is post content, not a marker.
func IsMarker(s string) bool {
	return s == "" || strings.HasPrefix(s, "[")
}
