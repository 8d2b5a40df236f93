package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/models"
)

const hlsMarker = "#EXTM3U"

// HLSParser parses HLS (m3u8) master and variant playlists.
type HLSParser struct {
	fetcher Fetcher
	log     logger.Logger
}

// NewHLSParser creates a new HLS parser. Variant playlists are retrieved
// through fetcher.
func NewHLSParser(fetcher Fetcher, log logger.Logger) *HLSParser {
	if log == nil {
		log = logger.Nop()
	}
	return &HLSParser{fetcher: fetcher, log: log}
}

// Format implements Parser.
func (p *HLSParser) Format() models.Format { return models.FormatHLS }

// CanParse checks if URL is an HLS manifest.
func (p *HLSParser) CanParse(urlStr string) bool {
	path, query := urlPathLower(urlStr)
	return strings.HasSuffix(path, ".m3u8") ||
		strings.Contains(path, "format=m3u8-aapl") ||
		strings.Contains(query, "format=m3u8-aapl")
}

// HLSResult is the parsed form of an HLS asset.
type HLSResult struct {
	URL         string
	ContentType string
	// Variants lists variant playlist URLs in first-reference order. It is
	// empty when the top-level document is itself a media playlist.
	Variants []string

	query    string
	segments []models.Segment
	bodies   map[string][]byte
}

func (r *HLSResult) Format() models.Format      { return models.FormatHLS }
func (r *HLSResult) MasterURL() string          { return r.URL }
func (r *HLSResult) Segments() []models.Segment { return r.segments }
func (r *HLSResult) isParsed()                  {}

// VariantBody returns the cached body of a variant playlist.
func (r *HLSResult) VariantBody(u string) ([]byte, bool) {
	b, ok := r.bodies[u]
	return b, ok
}

// BeforeStore removes "?<master query>" from the master playlist so that
// stored copies do not carry the origin's query tokens. Every other
// resource passes through unchanged.
func (r *HLSResult) BeforeStore(u string, data []byte, contentType string) ([]byte, string) {
	if u != r.URL || r.query == "" {
		return data, contentType
	}
	return bytes.ReplaceAll(data, []byte("?"+r.query), nil), contentType
}

// Parse walks the master playlist, fetches each variant once and collects
// its init and media segments.
func (p *HLSParser) Parse(ctx context.Context, master *models.Document, headers map[string]string) (Parsed, error) {
	if err := checkHLSMarker(master); err != nil {
		return nil, err
	}

	result := &HLSResult{
		URL:         master.URL,
		ContentType: correctContentType(master.ContentType, models.FormatHLS),
		bodies:      make(map[string][]byte),
	}
	if u, err := url.Parse(master.URL); err == nil {
		result.query = u.RawQuery
	}

	if isMediaPlaylist(master.Body) {
		p.log.Debugf("%s is a media playlist, treating it as its own variant", master.URL)
		segments, err := parseVariantPlaylist(master)
		if err != nil {
			return nil, err
		}
		result.segments = segments
		return result, nil
	}

	variants, err := parseMasterPlaylist(master)
	if err != nil {
		return nil, err
	}
	result.Variants = variants
	p.log.Infof("master playlist references %d variants", len(variants))

	for _, v := range variants {
		doc, err := p.fetchVariant(ctx, v, headers, result.bodies)
		if err != nil {
			return nil, err
		}
		segments, err := parseVariantPlaylist(doc)
		if err != nil {
			return nil, err
		}
		p.log.Debugf("variant %s: %d segments", v, len(segments))
		result.segments = append(result.segments, segments...)
	}

	return result, nil
}

// fetchVariant fetches a variant playlist at most once per resolution.
func (p *HLSParser) fetchVariant(ctx context.Context, u string, headers map[string]string, cache map[string][]byte) (*models.Document, error) {
	if body, ok := cache[u]; ok {
		return &models.Document{URL: u, Status: 200, ContentType: models.ContentTypeHLS, Body: body}, nil
	}
	if p.fetcher == nil {
		return nil, fmt.Errorf("fetch variant %s: no fetcher configured", u)
	}

	doc, err := p.fetcher.Fetch(ctx, u, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch variant: %w", err)
	}
	if err := checkHLSMarker(doc); err != nil {
		return nil, err
	}
	cache[u] = doc.Body
	return doc, nil
}

func checkHLSMarker(doc *models.Document) error {
	if !bytes.HasPrefix(bytes.TrimPrefix(doc.Body, utf8BOM), []byte(hlsMarker)) {
		return &models.NotAManifestError{URL: doc.URL, Status: doc.Status, Expected: models.FormatHLS}
	}
	return nil
}

// isMediaPlaylist classifies a top-level playlist. Anything the decoder
// cannot classify is handled as a master playlist.
func isMediaPlaylist(body []byte) bool {
	_, listType, err := m3u8.DecodeFrom(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)), false)
	if err != nil {
		return false
	}
	return listType == m3u8.MEDIA
}

// parseMasterPlaylist returns variant playlist URLs: URI attributes of
// EXT-X-MEDIA and EXT-X-I-FRAME-STREAM-INF, and bare URI lines.
func parseMasterPlaylist(doc *models.Document) ([]string, error) {
	refs := newOrderedSet()
	err := scanPlaylist(doc, func(tag, attrs string, isURI bool) error {
		if isURI {
			return addRef(doc, refs, attrs)
		}
		switch tag {
		case "#EXT-X-MEDIA", "#EXT-X-I-FRAME-STREAM-INF":
			list, err := parseAttributeList(attrs)
			if err != nil {
				return models.FormatErrorf(doc, "%s: %v", tag, err)
			}
			if uri := list["URI"]; uri != "" {
				return addRef(doc, refs, uri)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs.items, nil
}

// parseVariantPlaylist returns the init segment (EXT-X-MAP) and media
// segment references of one variant, deduplicated in order.
func parseVariantPlaylist(doc *models.Document) ([]models.Segment, error) {
	refs := newOrderedSet()
	var segments []models.Segment

	err := scanPlaylist(doc, func(tag, attrs string, isURI bool) error {
		var (
			ref  string
			init bool
		)
		switch {
		case isURI:
			ref = attrs
		case tag == "#EXT-X-MAP":
			list, err := parseAttributeList(attrs)
			if err != nil {
				return models.FormatErrorf(doc, "%s: %v", tag, err)
			}
			if list["URI"] == "" {
				return models.FormatErrorf(doc, "%s without URI", tag)
			}
			ref, init = list["URI"], true
		case tag == "#EXT-X-I-FRAME-STREAM-INF":
			list, err := parseAttributeList(attrs)
			if err != nil {
				return models.FormatErrorf(doc, "%s: %v", tag, err)
			}
			ref = list["URI"]
		}
		if ref == "" {
			return nil
		}

		u, err := ResolveURL(doc.URL, ref)
		if err != nil {
			return models.FormatErrorf(doc, "%v", err)
		}
		if refs.add(u) {
			segments = append(segments, models.Segment{URL: u, Init: init, Representation: doc.URL})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func addRef(doc *models.Document, refs *orderedSet, ref string) error {
	u, err := ResolveURL(doc.URL, ref)
	if err != nil {
		return models.FormatErrorf(doc, "%v", err)
	}
	refs.add(u)
	return nil
}

// scanPlaylist calls fn for every tag line (with the tag and its
// attribute text) and every bare URI line (isURI, text in attrs). Blank
// lines and comments are skipped.
func scanPlaylist(doc *models.Document, fn func(tag, attrs string, isURI bool) error) error {
	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(doc.Body, utf8BOM)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT"):
			tag, attrs, _ := strings.Cut(line, ":")
			if err := fn(tag, attrs, false); err != nil {
				return err
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if err := fn("", line, true); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return models.FormatErrorf(doc, "read playlist: %v", err)
	}
	return nil
}
