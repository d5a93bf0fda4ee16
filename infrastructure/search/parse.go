package search

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// parseResults extracts organic results from a DuckDuckGo HTML page. Each
// result is an anchor with class result__a followed by a result__snippet
// element. Ads (links through /y.js) are skipped.
func parseResults(r io.Reader, limit int) ([]ports.SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var (
		results []ports.SearchResult
		current *ports.SearchResult
	)

	flush := func() {
		if current != nil && current.URL != "" && len(results) < limit {
			results = append(results, *current)
		}
		current = nil
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				flush()
				href := resultURL(attr(n, "href"))
				if href != "" {
					current = &ports.SearchResult{Title: text(n), URL: href}
				}
				return
			case hasClass(n, "result__snippet"):
				if current != nil {
					current.Snippet = text(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	return results, nil
}

// resultURL unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
// It returns "" for ads and unparseable links.
func resultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if u.Path == "/y.js" {
			return ""
		}
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text returns the collapsed text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
