// Package research turns a search query into an evidence block for the
// prompt. It applies the mode's filters and result cap, widens the search
// once when the profile allows it, and reports provider failures and empty
// results as evidence text instead of errors.
package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/search"
	"github.com/titi-ai/titi/internal/textutil"
	"github.com/titi-ai/titi/pkg/logger"
	"github.com/titi-ai/titi/pkg/metrics"
)

// Outcome classifies a retrieval.
type Outcome string

const (
	OutcomeFound           Outcome = "found"
	OutcomeEmpty           Outcome = "empty"
	OutcomeProviderFailure Outcome = "provider_failure"
)

const (
	missingSnippet = "Sin resumen disponible."
	missingURL     = "N/A"
)

// Entry is one normalized search result.
type Entry struct {
	Index   int
	Title   string
	URL     string
	Snippet string
}

// Evidence is the result of one retrieval. Text is always set and is what
// the prompt embeds, whatever the outcome.
type Evidence struct {
	Query        string
	Outcome      Outcome
	Entries      []Entry
	Text         string
	FallbackUsed bool
	Err          error
}

// Gateway retrieves evidence through a search provider.
type Gateway struct {
	provider search.Provider
	group    singleflight.Group
	logger   *logger.Logger
}

// NewGateway creates a gateway over provider.
func NewGateway(provider search.Provider, log *logger.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		logger:   log.Named("research"),
	}
}

// Retrieve searches for query under profile. It never returns an error;
// failures are described by the returned Evidence. Identical concurrent
// retrievals share one provider round trip, which is detached from any one
// caller's cancellation and bounded by the provider's own timeout. A caller
// whose ctx ends first stops waiting without affecting the others.
func (g *Gateway) Retrieve(ctx context.Context, query string, profile mode.Profile) Evidence {
	key := string(profile.Mode) + "\x00" + query
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		return g.retrieve(shared, query, profile), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Evidence)
	case <-ctx.Done():
		g.logger.Debug("retrieval abandoned by caller",
			zap.String("mode", string(profile.Mode)),
			zap.Error(ctx.Err()),
		)
		return Evidence{
			Query:   query,
			Outcome: OutcomeProviderFailure,
			Text:    profile.UnreachableText,
			Err:     ctx.Err(),
		}
	}
}

func (g *Gateway) retrieve(ctx context.Context, query string, profile mode.Profile) Evidence {
	log := g.logger.With(
		zap.String("mode", string(profile.Mode)),
		zap.String("query", query),
	)
	ev := Evidence{Query: query}

	entries, err := g.search(ctx, profile, profile.FilteredQuery(query), "primary")
	if err == nil && len(entries) == 0 && profile.AllowsFallback() {
		log.Info("no results with strict filters, relaxing")
		ev.FallbackUsed = true
		entries, err = g.search(ctx, profile, profile.RelaxedQuery(query), "relaxed")
	}

	switch {
	case err != nil:
		log.Warn("search provider failed", zap.Error(err))
		ev.Outcome = OutcomeProviderFailure
		ev.Text = profile.UnreachableText
		ev.Err = err
	case len(entries) == 0:
		log.Warn("search returned no usable results")
		ev.Outcome = OutcomeEmpty
		ev.Text = profile.NoResultsText
	default:
		log.Debug("evidence retrieved", zap.Int("entries", len(entries)))
		ev.Outcome = OutcomeFound
		ev.Entries = entries
		ev.Text = Render(entries, profile.SourceLabel)
	}

	metrics.RecordEvidence(string(profile.Mode), string(ev.Outcome))
	return ev
}

func (g *Gateway) search(ctx context.Context, profile mode.Profile, q, attempt string) ([]Entry, error) {
	results, err := g.provider.Search(ctx, q, search.Options{
		Count:    profile.MaxResults,
		Language: profile.Language,
		Region:   profile.Region,
	})
	if err != nil {
		metrics.RecordSearch(string(profile.Mode), attempt, "error")
		return nil, fmt.Errorf("%s search: %w", attempt, err)
	}
	metrics.RecordSearch(string(profile.Mode), attempt, "success")
	return Normalize(results, profile), nil
}

// Normalize converts provider results into numbered entries, dropping
// results with neither title nor URL and keeping at most profile.MaxResults.
func Normalize(results []search.Result, profile mode.Profile) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		if profile.MaxResults > 0 && len(entries) >= profile.MaxResults {
			break
		}
		title := textutil.CollapseSpaces(r.Title)
		url := strings.TrimSpace(r.URL)
		if title == "" && url == "" {
			continue
		}
		if title == "" {
			title = profile.UntitledSource
		}
		if url == "" {
			url = missingURL
		}
		snippet := textutil.CollapseSpaces(r.Snippet)
		if snippet == "" {
			snippet = missingSnippet
		} else if profile.SnippetLimit > 0 {
			snippet = textutil.Ellipsize(snippet, profile.SnippetLimit)
		}
		entries = append(entries, Entry{
			Index:   len(entries) + 1,
			Title:   title,
			URL:     url,
			Snippet: snippet,
		})
	}
	return entries
}

// Render formats entries as numbered source blocks.
func Render(entries []Entry, label string) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, fmt.Sprintf("--- %s [%d] ---\nTÍTULO: %s\nLINK: %s\nRESUMEN: %s\n",
			label, e.Index, e.Title, e.URL, e.Snippet))
	}
	return strings.Join(blocks, "\n")
}
