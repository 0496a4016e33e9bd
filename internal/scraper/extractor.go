package scraper

import (
	"net/url"
	"sort"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// Detail is what a detail page yields before its tracked link is resolved.
type Detail struct {
	Record      models.DealRecord // Link is left empty
	TrackedLink string            // empty when the page has no see-deal anchor
}

// Extractor parses one source's pages. Implementations are pure: fetching and
// link resolution happen in Client.
type Extractor interface {
	// Source is the tag records of this source are stored under.
	Source() string
	Branding() models.Branding
	// SearchRequest builds the listing URL and query parameters for q.
	SearchRequest(q models.QuerySpec) (string, url.Values)
	// ExtractListing returns the fully qualified detail-page URLs of organic posts, in page order.
	ExtractListing(body []byte) []string
	// ExtractDetail parses a detail page. Missing elements degrade to defaults, never errors.
	ExtractDetail(body []byte, postID string) Detail
}

// Registry maps source tags to their extractor.
type Registry struct {
	extractors map[string]Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor, len(extractors))}
	for _, e := range extractors {
		r.extractors[e.Source()] = e
	}
	return r
}

// Lookup returns the extractor registered for tag.
func (r *Registry) Lookup(tag string) (Extractor, bool) {
	e, ok := r.extractors[tag]
	return e, ok
}

// Sources lists registered tags in sorted order.
func (r *Registry) Sources() []string {
	tags := make([]string, 0, len(r.extractors))
	for tag := range r.extractors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
