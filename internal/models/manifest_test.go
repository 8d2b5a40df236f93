package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatUnknown, false},
		{"DASH", FormatDASH, false},
		{"mpd", FormatDASH, false},
		{" hls ", FormatHLS, false},
		{"m3u8", FormatHLS, false},
		{"smooth", FormatUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsOctetStream(t *testing.T) {
	assert.True(t, IsOctetStream("binary/octet-stream"))
	assert.True(t, IsOctetStream("Application/Octet-Stream; charset=binary"))
	assert.False(t, IsOctetStream(ContentTypeHLS))
	assert.False(t, IsOctetStream(""))
}

func TestResourceSetRelativePath(t *testing.T) {
	rs := ResourceSet{CommonPrefix: "https://h/a/"}
	assert.Equal(t, "b/seg1.m4s", rs.RelativePath("https://h/a/b/seg1.m4s?token=x"))
	assert.Equal(t, "index.mpd", rs.RelativePath("https://h/a/index.mpd"))
}

func TestAssetErrors(t *testing.T) {
	cause := errors.New("connection reset")
	var errs = []AssetError{
		&TransportError{URL: "https://h/a", Attempts: 3, Status: 200, Err: cause},
		&HTTPStatusError{URL: "https://h/a", Status: 404},
		&ManifestFormatError{URL: "https://h/a", Message: "missing template"},
		&NotAManifestError{URL: "https://h/a", Expected: FormatHLS},
	}
	for _, e := range errs {
		assert.Equal(t, "https://h/a", e.ResourceURL())
		assert.Contains(t, e.Error(), "https://h/a")
	}

	te := errs[0].(*TransportError)
	assert.ErrorIs(t, te, cause)
	assert.Equal(t, 200, te.StatusCode())
	assert.Contains(t, errs[1].Error(), "Not Found")
}

func TestFormatMarshalText(t *testing.T) {
	b, err := FormatDASH.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "dash", string(b))

	b, err = FormatUnknown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "unknown", string(b))
}

func TestWrapFormatError(t *testing.T) {
	cause := errors.New("bad timeline")
	doc := &Document{URL: "https://h/index.mpd", Status: 200}

	err := WrapFormatError(doc, cause, "period %d", 2)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "period 2: bad timeline", err.Message)
	assert.Equal(t, 200, err.StatusCode())
	assert.Equal(t, "https://h/index.mpd", err.ResourceURL())
}
