package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributeList(t *testing.T) {
	attrs, err := parseAttributeList(`TYPE=AUDIO,URI="aud/a.m3u8",NAME="en, US"`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"TYPE": "AUDIO",
		"URI":  "aud/a.m3u8",
		"NAME": "en, US",
	}, attrs)

	attrs, err = parseAttributeList(`BANDWIDTH=86000, CODECS="avc1.4d401f,mp4a.40.2", RESOLUTION=1280x720,`)
	require.NoError(t, err)
	assert.Equal(t, "86000", attrs["BANDWIDTH"])
	assert.Equal(t, "avc1.4d401f,mp4a.40.2", attrs["CODECS"])
	assert.Equal(t, "1280x720", attrs["RESOLUTION"])

	attrs, err = parseAttributeList("")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestParseAttributeListMalformed(t *testing.T) {
	bad := []string{
		`URI="unterminated`,
		`TYPE=AUDIO,DEFAULT`,
		`URI="a.m3u8"NAME="x"`,
		`lower=case`,
		`=value`,
	}
	for _, in := range bad {
		_, err := parseAttributeList(in)
		assert.Error(t, err, in)
	}
}
