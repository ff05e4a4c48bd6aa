package source

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"
)

// StaticDoc is one fixed-URL document served by a StaticAdapter, such as
// the consolidated Constitution PDF or the yearly ruling compilations.
type StaticDoc struct {
	URL   string
	Title string
}

// StaticAdapter yields a fixed set of documents by URL. URLs that fail to
// download are skipped, which also covers probing candidate URL patterns
// that may not exist for every year.
type StaticAdapter struct {
	name   string
	docs   []StaticDoc
	client *httpClient
	logger *slog.Logger
}

// NewStatic creates an adapter over a fixed document list.
func NewStatic(name string, docs []StaticDoc, logger *slog.Logger) *StaticAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticAdapter{
		name:   name,
		docs:   docs,
		client: newHTTPClient(500 * time.Millisecond),
		logger: logger,
	}
}

func (a *StaticAdapter) Name() string { return a.name }

func (a *StaticAdapter) Fetch(ctx context.Context, limit int, emit func(Item) error) error {
	emitted := 0
	for _, doc := range a.docs {
		if limit > 0 && emitted >= limit {
			return nil
		}

		body, err := a.client.get(ctx, doc.URL)
		if err != nil {
			a.logger.Warn("document download failed", "source", a.name, "url", doc.URL, "error", err)
			continue
		}

		item := Item{
			ID:    doc.URL,
			URL:   doc.URL,
			Title: doc.Title,
			Ext:   extOf(doc.URL),
			Body:  body,
		}
		if err := emit(item); err != nil {
			return err
		}
		emitted++
	}
	return nil
}

func extOf(url string) string {
	ext := strings.ToLower(path.Ext(url))
	switch ext {
	case ".pdf", ".html", ".htm", ".txt", ".md":
		return ext
	default:
		return ".html"
	}
}
