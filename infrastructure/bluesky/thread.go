package bluesky

import (
	"encoding/json"
	"fmt"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// Thread union $type values returned by app.bsky.feed.getPostThread.
const (
	typeThreadViewPost = "app.bsky.feed.defs#threadViewPost"
	typeNotFoundPost   = "app.bsky.feed.defs#notFoundPost"
	typeBlockedPost    = "app.bsky.feed.defs#blockedPost"
)

type getPostThreadResponse struct {
	Thread json.RawMessage `json:"thread"`
}

type threadUnion struct {
	Type string    `json:"$type"`
	URI  string    `json:"uri"`
	Post *postView `json:"post"`
}

type postView struct {
	URI    string `json:"uri"`
	Author struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Record struct {
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
	} `json:"record"`
	LikeCount   int `json:"likeCount"`
	RepostCount int `json:"repostCount"`
	ReplyCount  int `json:"replyCount"`
}

// decodeThread maps the thread union onto domain.Thread. requestedURI is used
// when the union carries no uri of its own.
func decodeThread(raw json.RawMessage, requestedURI string) (domain.Thread, error) {
	if len(raw) == 0 {
		return domain.Thread{}, fmt.Errorf("%w: response has no thread", ports.ErrInvalidResponse)
	}

	var u threadUnion
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.Thread{}, fmt.Errorf("%w: decode thread: %v", ports.ErrInvalidResponse, err)
	}

	uri := u.URI
	if uri == "" {
		uri = requestedURI
	}

	switch u.Type {
	case typeNotFoundPost:
		return domain.Thread{Kind: domain.ThreadNotFound, URI: uri}, nil
	case typeBlockedPost:
		return domain.Thread{Kind: domain.ThreadBlocked, URI: uri}, nil
	case typeThreadViewPost:
		if u.Post == nil {
			return domain.Thread{}, fmt.Errorf("%w: thread view without post", ports.ErrInvalidResponse)
		}
		p := u.Post
		if p.URI != "" {
			uri = p.URI
		}
		return domain.Thread{
			Kind: domain.ThreadFound,
			URI:  uri,
			Post: &domain.Post{
				URI:               uri,
				AuthorHandle:      p.Author.Handle,
				AuthorDisplayName: p.Author.DisplayName,
				Text:              p.Record.Text,
				CreatedAt:         p.Record.CreatedAt,
				LikeCount:         p.LikeCount,
				RepostCount:       p.RepostCount,
				ReplyCount:        p.ReplyCount,
			},
		}, nil
	default:
		return domain.Thread{}, fmt.Errorf("%w: %q", ErrUnknownThreadType, u.Type)
	}
}
