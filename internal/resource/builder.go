// Package resource turns parser output into the deduplicated resource set
// of an asset.
package resource

import (
	"strings"

	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
)

// Build collects the master manifest, any variant playlists and every
// segment into a ResourceSet.
func Build(parsed parser.Parsed) models.ResourceSet {
	b := newBuilder()

	b.manifest(parsed.MasterURL())
	if hls, ok := parsed.(*parser.HLSResult); ok {
		for _, v := range hls.Variants {
			b.manifest(v)
		}
	}

	for _, s := range parsed.Segments() {
		b.segment(s)
	}

	b.set.CommonPrefix = CommonPrefix(b.set.Resources)
	return b.set
}

type builder struct {
	set       models.ResourceSet
	seen      map[string]struct{}
	seenMedia map[string]struct{}
	seenInit  map[string]struct{}
}

func newBuilder() *builder {
	return &builder{
		seen:      make(map[string]struct{}),
		seenMedia: make(map[string]struct{}),
		seenInit:  make(map[string]struct{}),
	}
}

func (b *builder) add(u string) bool {
	if _, ok := b.seen[u]; ok {
		return false
	}
	b.seen[u] = struct{}{}
	b.set.Resources = append(b.set.Resources, u)
	return true
}

func (b *builder) manifest(u string) {
	if b.add(u) {
		b.set.Manifests = append(b.set.Manifests, u)
	}
}

// segment records s once in Resources and once in its role list, so a URL
// used both as media and as init keeps both roles.
func (b *builder) segment(s models.Segment) {
	b.add(s.URL)

	role, list := b.seenMedia, &b.set.MediaSegments
	if s.Init {
		role, list = b.seenInit, &b.set.InitSegments
	}
	if _, ok := role[s.URL]; ok {
		return
	}
	role[s.URL] = struct{}{}
	*list = append(*list, s.URL)
}

// CommonPrefix returns the character-wise longest common prefix of urls,
// cut back to its last '/' so it never ends inside a file name.
func CommonPrefix(urls []string) string {
	if len(urls) == 0 {
		return ""
	}

	prefix := urls[0]
	for _, u := range urls[1:] {
		n := len(prefix)
		if len(u) < n {
			n = len(u)
		}
		i := 0
		for i < n && prefix[i] == u[i] {
			i++
		}
		prefix = prefix[:i]
		if prefix == "" {
			return ""
		}
	}

	if strings.HasSuffix(prefix, "/") {
		return prefix
	}
	if i := strings.LastIndexByte(prefix, '/'); i >= 0 {
		return prefix[:i+1]
	}
	return ""
}
