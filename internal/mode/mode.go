// Package mode defines the retrieval and persona profiles the assistant can
// run under. A Profile carries everything that differs between modes so the
// rest of the pipeline never branches on the mode itself.
package mode

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects persona, search filters and prompt template for one request.
type Mode string

const (
	Academic Mode = "academic"
	Legal    Mode = "legal"
)

// Default is used when a request does not name a mode.
const Default = Academic

// ErrUnknownMode is returned by Parse for values outside the enum.
var ErrUnknownMode = errors.New("unknown mode")

// Parse converts a request value into a Mode. The empty string maps to Default.
func Parse(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Default, nil
	case Academic:
		return Academic, nil
	case Legal:
		return Legal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Profile is the complete configuration of one mode.
type Profile struct {
	Mode Mode

	// Query synthesis.
	QueryTask    string // instruction given to the model when asking for a query
	DefaultQuery string // literal used when nothing else is available

	// Retrieval.
	SiteFilter    string // appended to every primary query
	RelaxedFilter string // one-shot widening on empty results; empty disables it
	MaxResults    int
	SnippetLimit  int
	Language      string
	Region        string

	// Evidence rendering.
	SourceLabel     string
	UntitledSource  string
	UnreachableText string
	NoResultsText   string

	// Prompt composition.
	Persona          string
	EvidenceHeading  string
	EmptyInstruction string
	IncludeHistory   bool
	Rules            []string
}

// AllowsFallback reports whether an empty primary search may be widened.
func (p Profile) AllowsFallback() bool {
	return p.RelaxedFilter != ""
}

// FilteredQuery returns the primary search expression for query.
func (p Profile) FilteredQuery(query string) string {
	return joinQuery(query, p.SiteFilter)
}

// RelaxedQuery returns the widened search expression for query.
func (p Profile) RelaxedQuery(query string) string {
	return joinQuery(query, p.RelaxedFilter)
}

func joinQuery(query, filter string) string {
	query = strings.TrimSpace(query)
	if filter == "" {
		return query
	}
	if query == "" {
		return filter
	}
	return query + " " + filter
}

// Registry resolves modes to profiles.
type Registry struct {
	profiles map[Mode]Profile
}

// NewRegistry builds a registry from the given profiles.
func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{profiles: make(map[Mode]Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.Mode] = p
	}
	return r
}

// Lookup returns the profile for m.
func (r *Registry) Lookup(m Mode) (Profile, error) {
	p, ok := r.profiles[m]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
	return p, nil
}

// Resolve parses a request value and returns its profile.
func (r *Registry) Resolve(s string) (Profile, error) {
	m, err := Parse(s)
	if err != nil {
		return Profile{}, err
	}
	return r.Lookup(m)
}
