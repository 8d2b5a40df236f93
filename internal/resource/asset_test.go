package resource

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
)

func TestNewAssetHLS(t *testing.T) {
	master := "https://h/out/master.m3u8?aws.manifestfilter=x"
	f := memFetcher{
		"https://h/out/v.m3u8?aws.manifestfilter=x": "#EXTM3U\n#EXTINF:4,\ns1.ts\n",
	}
	body := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8?aws.manifestfilter=x\n"
	doc := &models.Document{URL: master, Status: 200, ContentType: "binary/octet-stream", Body: []byte(body)}

	parsed, err := parser.NewHLSParser(f, nil).Parse(context.Background(), doc, nil)
	require.NoError(t, err)

	a := NewAsset(parsed)
	_, err = uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, NewAsset(parsed).ID)
	assert.Equal(t, models.FormatHLS, a.Format)
	assert.Equal(t, models.ContentTypeHLS, a.ContentType)
	assert.Equal(t, 3, a.Resources.Len())

	data, ct := a.BeforeStore(master, []byte(body), "binary/octet-stream")
	assert.Equal(t, models.ContentTypeHLS, ct)
	assert.Equal(t, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8\n", string(data))

	cached, ok := a.Cached("https://h/out/v.m3u8?aws.manifestfilter=x")
	require.True(t, ok)
	assert.Contains(t, string(cached), "s1.ts")

	_, ok = a.Cached("https://h/out/s1.ts")
	assert.False(t, ok)
}

func TestNewAssetDASH(t *testing.T) {
	mpd := `<MPD><Period duration="PT2S"><AdaptationSet><SegmentTemplate media="s-$Number$.m4s" duration="2"/><Representation id="v"/></AdaptationSet></Period></MPD>`
	a := NewAsset(parseDASH(t, "https://h/vod/index.mpd", mpd))

	assert.Equal(t, models.FormatDASH, a.Format)
	assert.Equal(t, models.ContentTypeDASH, a.ContentType)

	in := []byte(mpd)
	out, ct := a.BeforeStore("https://h/vod/s-1.m4s", in, "video/mp4")
	assert.Equal(t, in, out)
	assert.Equal(t, "video/mp4", ct)

	_, ok := a.Cached("https://h/vod/index.mpd")
	assert.False(t, ok)
}
