package parser

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/vodmirror/internal/models"
)

// mapFetcher serves bodies from memory and counts requests per URL.
type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newMapFetcher(bodies map[string]string) *mapFetcher {
	return &mapFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *mapFetcher) Fetch(_ context.Context, url string, _ map[string]string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, &models.HTTPStatusError{URL: url, Status: 404}
	}
	return &models.Document{URL: url, Status: 200, ContentType: "binary/octet-stream", Body: []byte(body)}, nil
}

const hlsMaster = "https://origin.example.com/out/v1/master.m3u8?token=abc"

const masterBody = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",URI="aud/a.m3u8",NAME="en, US",LANGUAGE="en"
#EXT-X-MEDIA:TYPE=CLOSED-CAPTIONS,GROUP-ID="cc",NAME="CC1",INSTREAM-ID="CC1"
#EXT-X-STREAM-INF:BANDWIDTH=1280000,CODECS="avc1.4d401f,mp4a.40.2",AUDIO="aud"
video/720p.m3u8?token=abc
#EXT-X-STREAM-INF:BANDWIDTH=2560000,AUDIO="aud"
video/1080p.m3u8

#EXT-X-STREAM-INF:BANDWIDTH=1280000,AUDIO="aud"
video/720p.m3u8?token=abc
#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=86000,URI="video/iframe.m3u8"
`

func hlsFixture() map[string]string {
	return map[string]string{
		"https://origin.example.com/out/v1/aud/a.m3u8": `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-MAP:URI="init.mp4"
#EXTINF:4.0,
seg1.m4s
#EXTINF:4.0,
seg2.m4s
#EXT-X-ENDLIST
`,
		"https://origin.example.com/out/v1/video/720p.m3u8?token=abc": `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-MAP:URI="720p/init.mp4"
#EXTINF:4.0,
720p/seg1.m4s?token=abc
#EXTINF:4.0,
720p/seg2.m4s?token=abc
#EXT-X-ENDLIST
`,
		"https://origin.example.com/out/v1/video/1080p.m3u8": `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-MAP:URI="1080p/init.mp4"
#EXTINF:4.0,
1080p/seg1.m4s
#EXTINF:4.0,
1080p/seg2.m4s
#EXT-X-ENDLIST
`,
		"https://origin.example.com/out/v1/video/iframe.m3u8": `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-I-FRAMES-ONLY
#EXT-X-MAP:URI="1080p/init.mp4"
#EXTINF:4.0,
#EXT-X-BYTERANGE:1000@800
1080p/seg1.m4s
#EXTINF:4.0,
#EXT-X-BYTERANGE:1000@9000
1080p/seg1.m4s
#EXT-X-ENDLIST
`,
	}
}

func parseHLS(t *testing.T, f Fetcher, body string) (*HLSResult, error) {
	t.Helper()
	doc := &models.Document{URL: hlsMaster, Status: 200, ContentType: "binary/octet-stream", Body: []byte(body)}
	parsed, err := NewHLSParser(f, nil).Parse(context.Background(), doc, map[string]string{"X-Token": "t"})
	if err != nil {
		return nil, err
	}
	res, ok := parsed.(*HLSResult)
	require.True(t, ok)
	return res, nil
}

func TestHLSMasterAndVariants(t *testing.T) {
	f := newMapFetcher(hlsFixture())

	res, err := parseHLS(t, f, masterBody)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://origin.example.com/out/v1/aud/a.m3u8",
		"https://origin.example.com/out/v1/video/720p.m3u8?token=abc",
		"https://origin.example.com/out/v1/video/1080p.m3u8",
		"https://origin.example.com/out/v1/video/iframe.m3u8",
	}, res.Variants)

	assert.Equal(t, []string{
		"https://origin.example.com/out/v1/aud/init.mp4",
		"https://origin.example.com/out/v1/aud/seg1.m4s",
		"https://origin.example.com/out/v1/aud/seg2.m4s",
		"https://origin.example.com/out/v1/video/720p/init.mp4",
		"https://origin.example.com/out/v1/video/720p/seg1.m4s?token=abc",
		"https://origin.example.com/out/v1/video/720p/seg2.m4s?token=abc",
		"https://origin.example.com/out/v1/video/1080p/init.mp4",
		"https://origin.example.com/out/v1/video/1080p/seg1.m4s",
		"https://origin.example.com/out/v1/video/1080p/seg2.m4s",
		"https://origin.example.com/out/v1/video/1080p/init.mp4",
		"https://origin.example.com/out/v1/video/1080p/seg1.m4s",
	}, urls(res.Segments()))

	segs := res.Segments()
	assert.True(t, segs[0].Init)
	assert.False(t, segs[1].Init)

	for u, n := range f.calls {
		assert.Equal(t, 1, n, u)
	}
	assert.Len(t, f.calls, 4)

	body, ok := res.VariantBody("https://origin.example.com/out/v1/video/1080p.m3u8")
	require.True(t, ok)
	assert.Contains(t, string(body), "1080p/seg2.m4s")

	assert.Equal(t, models.ContentTypeHLS, res.ContentType)
	assert.Equal(t, models.FormatHLS, res.Format())
}

func TestHLSBeforeStore(t *testing.T) {
	res, err := parseHLS(t, newMapFetcher(hlsFixture()), masterBody)
	require.NoError(t, err)

	data, ct := res.BeforeStore(hlsMaster, []byte(masterBody), models.ContentTypeHLS)
	assert.Equal(t, models.ContentTypeHLS, ct)
	assert.NotContains(t, string(data), "?token=abc")
	assert.Contains(t, string(data), "\nvideo/720p.m3u8\n")

	variant := "https://origin.example.com/out/v1/video/720p.m3u8?token=abc"
	in := []byte("720p/seg1.m4s?token=abc")
	out, _ := res.BeforeStore(variant, in, models.ContentTypeHLS)
	assert.Equal(t, in, out)
}

func TestHLSBeforeStoreWithoutQuery(t *testing.T) {
	res := &HLSResult{URL: "https://h/master.m3u8"}
	in := []byte("#EXTM3U\nv.m3u8?x=1\n")
	out, _ := res.BeforeStore("https://h/master.m3u8", in, "")
	assert.Equal(t, in, out)
}

func TestHLSTopLevelMediaPlaylist(t *testing.T) {
	f := newMapFetcher(nil)
	body := hlsFixture()["https://origin.example.com/out/v1/aud/a.m3u8"]

	res, err := parseHLS(t, f, body)
	require.NoError(t, err)
	assert.Empty(t, res.Variants)
	assert.Equal(t, []string{
		"https://origin.example.com/out/v1/init.mp4",
		"https://origin.example.com/out/v1/seg1.m4s",
		"https://origin.example.com/out/v1/seg2.m4s",
	}, urls(res.Segments()))
	assert.Empty(t, f.calls)
}

func TestHLSNotAManifest(t *testing.T) {
	_, err := parseHLS(t, newMapFetcher(nil), "<MPD/>")
	var nm *models.NotAManifestError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, hlsMaster, nm.ResourceURL())

	bodies := hlsFixture()
	bodies["https://origin.example.com/out/v1/video/1080p.m3u8"] = "<html>gateway timeout</html>"
	_, err = parseHLS(t, newMapFetcher(bodies), masterBody)
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, "https://origin.example.com/out/v1/video/1080p.m3u8", nm.ResourceURL())
}

func TestHLSVariantFetchError(t *testing.T) {
	bodies := hlsFixture()
	delete(bodies, "https://origin.example.com/out/v1/aud/a.m3u8")

	_, err := parseHLS(t, newMapFetcher(bodies), masterBody)
	var se *models.HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.StatusCode())
}

func TestHLSMalformedAttributes(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-MEDIA:TYPE=AUDIO,URI=\"aud/a.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8\n"
	_, err := parseHLS(t, newMapFetcher(nil), body)
	var fe *models.ManifestFormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, hlsMaster, fe.ResourceURL())

	bodies := hlsFixture()
	bodies["https://origin.example.com/out/v1/aud/a.m3u8"] = "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXT-X-MAP:BYTERANGE=\"100@0\"\n#EXTINF:4,\ns.m4s\n"
	_, err = parseHLS(t, newMapFetcher(bodies), masterBody)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "https://origin.example.com/out/v1/aud/a.m3u8", fe.ResourceURL())
}

func TestHLSCanParse(t *testing.T) {
	p := NewHLSParser(nil, nil)
	assert.True(t, p.CanParse("https://h/a/index.m3u8"))
	assert.True(t, p.CanParse("https://h/a/index.m3u8?token=x"))
	assert.True(t, p.CanParse("https://h/a/index?format=m3u8-aapl"))
	assert.False(t, p.CanParse("https://h/a/index.mpd"))
}

func TestRegistryDetect(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.Equal(t, models.FormatHLS, r.DetectURL("https://h/a/index.m3u8"))
	assert.Equal(t, models.FormatDASH, r.DetectURL("https://h/a/index.mpd"))
	assert.Equal(t, models.FormatUnknown, r.DetectURL("https://h/a/index"))

	p, ok := r.Lookup(models.FormatDASH)
	require.True(t, ok)
	assert.Equal(t, models.FormatDASH, p.Format())

	assert.Equal(t, models.FormatHLS, DetectDocument(&models.Document{ContentType: "application/vnd.apple.mpegurl"}))
	assert.Equal(t, models.FormatDASH, DetectDocument(&models.Document{ContentType: "application/dash+xml"}))
	assert.Equal(t, models.FormatHLS, DetectDocument(&models.Document{Body: []byte("\xEF\xBB\xBF#EXTM3U\n")}))
	assert.Equal(t, models.FormatDASH, DetectDocument(&models.Document{Body: []byte("<?xml version=\"1.0\"?>\n<MPD/>")}))
	assert.Equal(t, models.FormatUnknown, DetectDocument(&models.Document{Body: []byte("hello")}))
}
