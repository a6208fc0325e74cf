// Package research looks up references that a generator may cite.
package research

import (
	"context"
	"net/url"
	"strings"
)

// Constraints limit what a search may return.
type Constraints struct {
	MaxSources     int
	AllowedSources []string
}

// Citation is one reference returned by a search.
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Reference renders the citation for inclusion in a prompt.
func (c Citation) Reference() string {
	if c.Title == "" {
		return c.URL
	}
	return c.Title + " (" + c.URL + ")"
}

// Tool searches for references about a topic.
type Tool interface {
	Search(ctx context.Context, topic string, constraints Constraints) ([]Citation, error)
}

// Apply filters citations by allowed source and caps them at MaxSources.
// A non-positive MaxSources yields nothing.
func Apply(citations []Citation, c Constraints) []Citation {
	if c.MaxSources <= 0 {
		return nil
	}
	out := make([]Citation, 0, min(len(citations), c.MaxSources))
	for _, cit := range citations {
		if len(out) == c.MaxSources {
			break
		}
		if Allowed(cit.URL, c.AllowedSources) {
			out = append(out, cit)
		}
	}
	return out
}

// Allowed reports whether rawURL comes from one of the allowed sources. An
// entry matches the host itself, any subdomain of it, or (for entries without
// a dot) any host label, so "arxiv" admits export.arxiv.org. An empty list
// allows everything.
func Allowed(rawURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
		if !strings.Contains(entry, ".") {
			for _, l := range labels {
				if l == entry {
					return true
				}
			}
		}
	}
	return false
}
