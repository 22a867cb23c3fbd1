package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skyserve/drishti/internal/normalize"
)

// Source supplies raw documents for one re-scrape cycle. The coordinator is
// agnostic to how documents are obtained.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]normalize.RawDocument, error)
}

// DirSource reads .html and .txt files from a directory tree, for manual
// uploads and the CLI ingest command.
type DirSource struct {
	Dir string
}

func (s DirSource) Name() string { return "dir:" + s.Dir }

func (s DirSource) Fetch(ctx context.Context) ([]normalize.RawDocument, error) {
	var docs []normalize.RawDocument
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".html" && ext != ".htm" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		docs = append(docs, normalize.RawDocument{
			URL:       "file://" + path,
			Body:      string(data),
			FetchedAt: time.Now().UTC(),
		})
		return nil
	})
	return docs, err
}

// URLSource fetches a fixed list of portal pages over HTTP.
type URLSource struct {
	SourceName string
	URLs       []string
	Client     *http.Client
}

func (s URLSource) Name() string { return s.SourceName }

func (s URLSource) Fetch(ctx context.Context) ([]normalize.RawDocument, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var docs []normalize.RawDocument
	for _, url := range s.URLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
		}
		docs = append(docs, normalize.RawDocument{
			URL:       url,
			Body:      string(body),
			FetchedAt: time.Now().UTC(),
		})
	}
	return docs, nil
}
