// Package parser resolves DASH and HLS manifests into ordered lists of
// absolute segment URLs.
package parser

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/models"
)

// Fetcher retrieves one resource. *httpclient.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*models.Document, error)
}

// Parsed is the outcome of parsing one asset. Its only implementations are
// *DASHResult and *HLSResult.
type Parsed interface {
	Format() models.Format
	MasterURL() string
	// Segments returns media and init segments in manifest order.
	Segments() []models.Segment
	isParsed()
}

// Parser defines the interface for manifest parsers. Parse receives the
// already fetched master document.
type Parser interface {
	Parse(ctx context.Context, master *models.Document, headers map[string]string) (Parsed, error)
	CanParse(url string) bool
	Format() models.Format
}

// Registry manages available parsers.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a new parser registry with default parsers.
func NewRegistry(fetcher Fetcher, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		parsers: []Parser{
			NewHLSParser(fetcher, log),
			NewDASHParser(log),
		},
	}
}

// Lookup returns the parser for f.
func (r *Registry) Lookup(f models.Format) (Parser, bool) {
	for _, p := range r.parsers {
		if p.Format() == f {
			return p, true
		}
	}
	return nil, false
}

// DetectURL guesses the format from the shape of a URL.
func (r *Registry) DetectURL(rawURL string) models.Format {
	for _, p := range r.parsers {
		if p.CanParse(rawURL) {
			return p.Format()
		}
	}
	return models.FormatUnknown
}

// DetectDocument guesses the format from a fetched body, first by declared
// content type and then by the leading bytes.
func DetectDocument(doc *models.Document) models.Format {
	ct := strings.ToLower(doc.ContentType)
	switch {
	case strings.Contains(ct, "mpegurl"):
		return models.FormatHLS
	case strings.Contains(ct, "dash+xml"):
		return models.FormatDASH
	}

	body := trimLeading(doc.Body)
	switch {
	case bytes.HasPrefix(body, []byte(hlsMarker)):
		return models.FormatHLS
	case bytes.HasPrefix(body, []byte("<")) && bytes.Contains(body, []byte("<MPD")):
		return models.FormatDASH
	}
	return models.FormatUnknown
}

// correctContentType replaces generic binary content types with the
// canonical type for f.
func correctContentType(ct string, f models.Format) string {
	if !models.IsOctetStream(ct) {
		return ct
	}
	switch f {
	case models.FormatDASH:
		return models.ContentTypeDASH
	case models.FormatHLS:
		return models.ContentTypeHLS
	}
	return ct
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func trimLeading(b []byte) []byte {
	return bytes.TrimLeft(bytes.TrimPrefix(b, utf8BOM), " \t\r\n")
}

func urlPathLower(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL), ""
	}
	return strings.ToLower(u.Path), strings.ToLower(u.RawQuery)
}

// orderedSet keeps first-occurrence order and drops duplicates.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}
