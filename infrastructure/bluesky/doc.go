// Package bluesky is a minimal XRPC client for reading Bluesky posts.
//
// A fetch logs in with an app password (com.atproto.server.createSession),
// resolves the handle in the post URL to a DID, and reads the post with
// app.bsky.feed.getPostThread at depth 0. The thread union is decoded once
// into a domain.Thread so callers never inspect $type strings.
package bluesky
