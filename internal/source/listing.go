package source

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ListingAdapter crawls an HTML listing page (optionally paginated),
// follows every anchor whose href contains a filter substring, and yields
// the linked documents. This covers the court publication sites, which all
// expose rulings as anchor lists.
type ListingAdapter struct {
	name       string
	listURL    string // listing page URL; page number is appended when paginate is set
	baseURL    string // prefix joined to relative hrefs
	hrefFilter string // only anchors whose href contains this are followed
	paginate   bool
	client     *httpClient
	logger     *slog.Logger
}

// Option configures a ListingAdapter.
type Option func(*ListingAdapter)

// WithPagination makes the adapter append an increasing page number to the
// listing URL and keep crawling until a page fails or yields no links.
func WithPagination() Option {
	return func(a *ListingAdapter) { a.paginate = true }
}

// WithRequestInterval sets the minimum delay between requests to the origin.
func WithRequestInterval(d time.Duration) Option {
	return func(a *ListingAdapter) { a.client = newHTTPClient(d) }
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *ListingAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewListing creates a listing adapter for one origin.
func NewListing(name, listURL, baseURL, hrefFilter string, opts ...Option) *ListingAdapter {
	a := &ListingAdapter{
		name:       name,
		listURL:    listURL,
		baseURL:    baseURL,
		hrefFilter: hrefFilter,
		client:     newHTTPClient(0),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ListingAdapter) Name() string { return a.name }

// Fetch downloads up to limit linked documents. Listing pages that fail or
// contain no matching links terminate pagination; a single document's
// download failure is logged and skipped.
func (a *ListingAdapter) Fetch(ctx context.Context, limit int, emit func(Item) error) error {
	emitted := 0
	page := 1

	for {
		url := a.listURL
		if a.paginate {
			url += strconv.Itoa(page)
		}

		body, err := a.client.get(ctx, url)
		if err != nil {
			if page > 1 {
				return nil // end of pagination
			}
			return err
		}

		links := extractLinks(body, a.hrefFilter)
		if len(links) == 0 {
			return nil
		}

		for _, link := range links {
			if limit > 0 && emitted >= limit {
				return nil
			}

			docURL := link.href
			if !strings.HasPrefix(docURL, "http") {
				docURL = a.baseURL + docURL
			}

			doc, err := a.client.get(ctx, docURL)
			if err != nil {
				a.logger.Warn("document download failed", "source", a.name, "url", docURL, "error", err)
				continue
			}

			item := Item{
				ID:    link.href,
				URL:   docURL,
				Title: link.text,
				Ext:   ".html",
				Body:  doc,
			}
			if err := emit(item); err != nil {
				return err
			}
			emitted++
		}

		if !a.paginate {
			return nil
		}
		page++
	}
}

type anchor struct {
	href string
	text string
}

// extractLinks returns all anchors in doc whose href contains filter.
func extractLinks(doc []byte, filter string) []anchor {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		return nil
	}

	var links []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if filter == "" || strings.Contains(attr.Val, filter) {
					links = append(links, anchor{href: attr.Val, text: nodeText(n)})
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
