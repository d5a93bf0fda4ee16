package bluesky

import (
	"fmt"
	"strings"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
)

// PostRef identifies a post by the actor segment of its bsky.app URL and its record key.
type PostRef struct {
	// Actor is a handle or a DID, as it appears in the URL.
	Actor string
	RKey  string
}

// ParsePostURL extracts the actor and record key from a bsky.app post URL.
func ParsePostURL(postURL string) (PostRef, error) {
	actor, rkey, ok := domain.SplitPostURL(postURL)
	if !ok {
		return PostRef{}, fmt.Errorf("%w: %s", ErrInvalidPostURL, postURL)
	}
	return PostRef{Actor: actor, RKey: rkey}, nil
}

// IsDID reports whether the actor is already a DID and needs no resolution.
func (r PostRef) IsDID() bool {
	return strings.HasPrefix(r.Actor, "did:")
}

// PostATURI builds the AT URI of a post record.
func PostATURI(did, rkey string) string {
	return fmt.Sprintf("at://%s/app.bsky.feed.post/%s", did, rkey)
}
