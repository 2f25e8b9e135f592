package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "debug", Format: "json", Out: &buf})
	defer Configure(Options{})

	l := New("planner")
	l.Info().Int("stops", 3).Msg("planned")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "planner", line["component"])
	assert.Equal(t, "planned", line["message"])
	assert.EqualValues(t, 3, line["stops"])
}

func TestConfigureFallsBackToInfo(t *testing.T) {
	Configure(Options{Level: "loud"})
	defer Configure(Options{})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
