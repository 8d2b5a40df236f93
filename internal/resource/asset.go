package resource

import (
	"github.com/google/uuid"

	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
)

// Asset is one resolved VOD asset. It is not modified after NewAsset
// returns and may be shared between goroutines.
type Asset struct {
	ID          string             `json:"id"`
	URL         string             `json:"url"`
	Format      models.Format      `json:"format"`
	ContentType string             `json:"contentType"`
	Resources   models.ResourceSet `json:"resourceSet"`
	Parsed      parser.Parsed      `json:"-"`
}

// NewAsset builds the resource set of parsed and assigns a fresh ID.
func NewAsset(parsed parser.Parsed) *Asset {
	a := &Asset{
		ID:        uuid.NewString(),
		URL:       parsed.MasterURL(),
		Format:    parsed.Format(),
		Resources: Build(parsed),
		Parsed:    parsed,
	}
	switch p := parsed.(type) {
	case *parser.DASHResult:
		a.ContentType = p.ContentType
	case *parser.HLSResult:
		a.ContentType = p.ContentType
	}
	if a.ContentType == "" {
		a.ContentType = canonicalContentType(a.Format)
	}
	return a
}

// BeforeStore rewrites a fetched resource before it is written to a
// destination. Only HLS master playlists are changed.
func (a *Asset) BeforeStore(u string, data []byte, contentType string) ([]byte, string) {
	if u == a.URL && models.IsOctetStream(contentType) {
		contentType = a.ContentType
	}
	if hls, ok := a.Parsed.(*parser.HLSResult); ok {
		return hls.BeforeStore(u, data, contentType)
	}
	return data, contentType
}

// Cached returns a body retrieved during resolution, so variant playlists
// are not requested twice.
func (a *Asset) Cached(u string) ([]byte, bool) {
	if hls, ok := a.Parsed.(*parser.HLSResult); ok {
		body, ok := hls.VariantBody(u)
		return body, ok
	}
	return nil, false
}

func canonicalContentType(f models.Format) string {
	switch f {
	case models.FormatDASH:
		return models.ContentTypeDASH
	case models.FormatHLS:
		return models.ContentTypeHLS
	}
	return models.ContentTypeOctetStream
}
