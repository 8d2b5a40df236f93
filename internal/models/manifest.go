// Package models defines core data structures shared by the resolver,
// the parsers and the mirror.
package models

import (
	"fmt"
	"strings"
)

// Format represents the manifest dialect of an asset.
type Format int

const (
	FormatUnknown Format = iota
	FormatDASH
	FormatHLS
)

func (f Format) String() string {
	switch f {
	case FormatDASH:
		return "DASH"
	case FormatHLS:
		return "HLS"
	default:
		return "Unknown"
	}
}

// MarshalText renders f as the lower-case hint ParseFormat accepts.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(f.String())), nil
}

// ParseFormat parses a user supplied format hint. An empty hint yields
// FormatUnknown and no error.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FormatUnknown, nil
	case "dash", "mpd":
		return FormatDASH, nil
	case "hls", "m3u8":
		return FormatHLS, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Canonical content types.
const (
	ContentTypeDASH        = "application/dash+xml"
	ContentTypeHLS         = "application/x-mpegURL"
	ContentTypeMP4         = "video/mp4"
	ContentTypeOctetStream = "application/octet-stream"
)

// IsOctetStream reports whether ct is one of the generic binary content
// types that origins send when they are not configured for media.
func IsOctetStream(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "binary/octet-stream" || ct == ContentTypeOctetStream
}

// Document is one retrieved resource.
type Document struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// Segment is one fetchable media or initialization object.
type Segment struct {
	URL            string
	Init           bool
	Representation string
}

// ResourceSet is the resolved, deduplicated view of an asset.
type ResourceSet struct {
	// Resources holds every URL once, in first-occurrence order.
	Resources []string `json:"resources"`
	// Manifests holds the master manifest followed by any variant playlists.
	Manifests []string `json:"manifests"`
	// MediaSegments preserves manifest temporal order and excludes init segments.
	MediaSegments []string `json:"mediaSegments"`
	InitSegments  []string `json:"initSegments"`
	CommonPrefix  string   `json:"commonPrefix"`
}

// Len returns the number of distinct resources.
func (r ResourceSet) Len() int { return len(r.Resources) }

// RelativePath strips the query string and the common prefix from u.
func (r ResourceSet) RelativePath(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimPrefix(u, r.CommonPrefix)
}
