package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf).With("asset", "abc")

	log.Debugf("fetched %d manifests", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "fetched 3 manifests", entry["message"])
	assert.Equal(t, "abc", entry["asset"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Infof("hidden")
	log.Warnf("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New("chatty", "json", &buf)

	log.Debugf("hidden")
	log.Infof("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Errorf("nothing %s", "happens")
	log.With("k", "v").Infof("still nothing")
}
