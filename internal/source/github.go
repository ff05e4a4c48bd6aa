package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHubAdapter yields text documents from a repository directory. Several
// statute collections are maintained as git repositories of markdown or
// plain-text files; this adapter makes them ingestible like any other
// origin.
type GitHubAdapter struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
	logger   *slog.Logger
}

// NewGitHub creates an adapter over owner/repo limited to basePath.
// If the GITHUB_TOKEN environment variable is set the client is
// authenticated for higher rate limits; secondary rate limits are handled
// with automatic retry either way.
func NewGitHub(owner, repo, basePath string, logger *slog.Logger) (*GitHubAdapter, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	ghClient := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GitHubAdapter{
		client:   ghClient,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		logger:   logger,
	}, nil
}

func (a *GitHubAdapter) Name() string {
	return fmt.Sprintf("github:%s/%s", a.owner, a.repo)
}

func (a *GitHubAdapter) Fetch(ctx context.Context, limit int, emit func(Item) error) error {
	paths, err := a.listFiles(ctx, a.basePath)
	if err != nil {
		return fmt.Errorf("list %s: %w", a.basePath, err)
	}

	emitted := 0
	for _, p := range paths {
		if limit > 0 && emitted >= limit {
			return nil
		}

		body, rawURL, err := a.fetchFile(ctx, p)
		if err != nil {
			a.logger.Warn("file fetch failed", "source", a.Name(), "path", p, "error", err)
			continue
		}

		item := Item{
			ID:    p,
			URL:   rawURL,
			Title: strings.TrimSuffix(path.Base(p), path.Ext(p)),
			Ext:   strings.ToLower(path.Ext(p)),
			Body:  body,
		}
		if err := emit(item); err != nil {
			return err
		}
		emitted++
	}
	return nil
}

// listFiles recursively collects markdown and plain-text files under dir.
func (a *GitHubAdapter) listFiles(ctx context.Context, dir string) ([]string, error) {
	var files []string

	_, dirContents, _, err := a.client.Repositories.GetContents(ctx, a.owner, a.repo, dir, nil)
	if err != nil {
		return nil, err
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Path == nil {
			continue
		}
		switch *item.Type {
		case "file":
			ext := strings.ToLower(path.Ext(*item.Path))
			if ext == ".md" || ext == ".txt" {
				files = append(files, *item.Path)
			}
		case "dir":
			sub, err := a.listFiles(ctx, *item.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}
	return files, nil
}

func (a *GitHubAdapter) fetchFile(ctx context.Context, filePath string) ([]byte, string, error) {
	fileContent, _, _, err := a.client.Repositories.GetContents(ctx, a.owner, a.repo, filePath, nil)
	if err != nil {
		return nil, "", err
	}
	if fileContent == nil || fileContent.Content == nil {
		return nil, "", fmt.Errorf("no file content returned for %s", filePath)
	}

	body, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, "", fmt.Errorf("decode content of %s: %w", filePath, err)
	}

	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/main/%s", a.owner, a.repo, filePath)
	return body, rawURL, nil
}
