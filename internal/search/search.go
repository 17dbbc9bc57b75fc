// Package search provides pluggable web search backends.
//
// Each backend implements [Provider]. Providers return raw results; the
// research package decides filters, caps and fallbacks.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results to return.
	// Providers may return fewer. Zero means provider default.
	Count int `json:"count,omitempty"`

	// Language is an ISO 639-1 language code (e.g., "es").
	Language string `json:"language,omitempty"`

	// Region is a provider region hint such as "co-es".
	Region string `json:"region,omitempty"`
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "duckduckgo", "searxng").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	SearXNGURL string
	BraveKey   string
	Timeout    time.Duration
}

// NewProvider builds the configured provider.
func NewProvider(cfg Config) (Provider, error) {
	client := newHTTPClient(cfg.Timeout)
	switch cfg.Provider {
	case "", "duckduckgo":
		return NewDuckDuckGo(client), nil
	case "searxng":
		if cfg.SearXNGURL == "" {
			return nil, fmt.Errorf("searxng: base URL is required")
		}
		return NewSearXNG(cfg.SearXNGURL, client), nil
	case "brave":
		if cfg.BraveKey == "" {
			return nil, fmt.Errorf("brave: API key is required")
		}
		return NewBrave(cfg.BraveKey, client), nil
	default:
		return nil, fmt.Errorf("search provider %q not supported", cfg.Provider)
	}
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Titi/1.0"

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func limit(count, def int) int {
	if count <= 0 {
		return def
	}
	return count
}
