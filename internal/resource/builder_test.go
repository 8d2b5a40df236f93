package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
)

type memFetcher map[string]string

func (f memFetcher) Fetch(_ context.Context, url string, _ map[string]string) (*models.Document, error) {
	body, ok := f[url]
	if !ok {
		return nil, &models.HTTPStatusError{URL: url, Status: 404}
	}
	return &models.Document{URL: url, Status: 200, ContentType: models.ContentTypeHLS, Body: []byte(body)}, nil
}

func parseDASH(t *testing.T, u, body string) parser.Parsed {
	t.Helper()
	doc := &models.Document{URL: u, Status: 200, Body: []byte(body)}
	parsed, err := parser.NewDASHParser(nil).Parse(context.Background(), doc, nil)
	require.NoError(t, err)
	return parsed
}

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want string
	}{
		{"same directory", []string{"https://h/a/b/seg1.m4s", "https://h/a/b/seg2.m4s"}, "https://h/a/b/"},
		{"shared file name prefix", []string{"https://h/a/seg1.m4s", "https://h/a/segX.m4s"}, "https://h/a/"},
		{"single url", []string{"https://h/a/b/index.mpd"}, "https://h/a/b/"},
		{"different hosts", []string{"https://a.example.com/x", "https://b.example.com/y"}, "https://"},
		{"no slash in shared prefix", []string{"https://h/a", "http://h/a"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommonPrefix(tt.urls))
		})
	}
}

func TestBuildDASHDeduplicatesSharedInit(t *testing.T) {
	mpd := `<MPD mediaPresentationDuration="PT8S">
  <Period start="PT0S">
    <AdaptationSet><SegmentTemplate media="v/seg-$Number$.m4s" duration="2" initialization="v/init.mp4"/><Representation id="v"/></AdaptationSet>
  </Period>
  <Period start="PT4S">
    <AdaptationSet><SegmentTemplate media="v/seg-$Number$.m4s" startNumber="3" duration="2" initialization="v/init.mp4"/><Representation id="v"/></AdaptationSet>
  </Period>
</MPD>`
	set := Build(parseDASH(t, "https://h/vod/index.mpd?tok=1", mpd))

	assert.Equal(t, []string{
		"https://h/vod/index.mpd?tok=1",
		"https://h/vod/v/seg-1.m4s",
		"https://h/vod/v/seg-2.m4s",
		"https://h/vod/v/init.mp4",
		"https://h/vod/v/seg-3.m4s",
		"https://h/vod/v/seg-4.m4s",
	}, set.Resources)
	assert.Equal(t, []string{"https://h/vod/index.mpd?tok=1"}, set.Manifests)
	assert.Equal(t, []string{"https://h/vod/v/init.mp4"}, set.InitSegments)
	assert.Len(t, set.MediaSegments, 4)
	assert.Equal(t, "https://h/vod/", set.CommonPrefix)
	assert.Equal(t, 6, set.Len())
	assert.Equal(t, "index.mpd", set.RelativePath(set.Manifests[0]))
}

func TestBuildKeepsBothRolesOfOneURL(t *testing.T) {
	// A static media template can point at the same object as the init.
	mpd := `<MPD><Period duration="PT4S"><AdaptationSet>
  <SegmentTemplate media="track.mp4" initialization="track.mp4"/>
  <Representation id="t"/>
</AdaptationSet></Period></MPD>`
	set := Build(parseDASH(t, "https://h/vod/index.mpd", mpd))

	assert.Equal(t, []string{"https://h/vod/index.mpd", "https://h/vod/track.mp4"}, set.Resources)
	assert.Equal(t, []string{"https://h/vod/track.mp4"}, set.MediaSegments)
	assert.Equal(t, []string{"https://h/vod/track.mp4"}, set.InitSegments)
}

func TestBuildHLSIncludesVariants(t *testing.T) {
	master := "https://h/out/master.m3u8"
	f := memFetcher{
		"https://h/out/v/720.m3u8": "#EXTM3U\n#EXT-X-MAP:URI=\"init.mp4\"\n#EXTINF:4,\ns1.m4s\n#EXTINF:4,\ns2.m4s\n",
		"https://h/out/iframe.m3u8": "#EXTM3U\n#EXT-X-I-FRAMES-ONLY\n#EXT-X-MAP:URI=\"v/init.mp4\"\n#EXTINF:4,\nv/s1.m4s\n",
	}
	body := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv/720.m3u8\n#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=1,URI=\"iframe.m3u8\"\n"

	doc := &models.Document{URL: master, Status: 200, Body: []byte(body)}
	parsed, err := parser.NewHLSParser(f, nil).Parse(context.Background(), doc, nil)
	require.NoError(t, err)

	set := Build(parsed)
	assert.Equal(t, []string{master, "https://h/out/v/720.m3u8", "https://h/out/iframe.m3u8"}, set.Manifests)
	assert.Equal(t, []string{
		master,
		"https://h/out/v/720.m3u8",
		"https://h/out/iframe.m3u8",
		"https://h/out/v/init.mp4",
		"https://h/out/v/s1.m4s",
		"https://h/out/v/s2.m4s",
	}, set.Resources)
	assert.Equal(t, []string{"https://h/out/v/s1.m4s", "https://h/out/v/s2.m4s"}, set.MediaSegments)
	assert.Equal(t, []string{"https://h/out/v/init.mp4"}, set.InitSegments)
	assert.Equal(t, "https://h/out/", set.CommonPrefix)
}
