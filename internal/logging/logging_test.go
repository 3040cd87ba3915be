package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-sweep/internal/logging"
)

func TestSetupJSONAndFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "sweep.log")

	closer, err := logging.Setup(logging.Config{Level: "debug", File: file}, &buf)
	require.NoError(t, err)
	log.Debug().Str("address", "0xabc").Msg("hello")
	require.NoError(t, closer.Close())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "0xabc", line["address"])

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"hello"`)
}

func TestSetupLevelFilters(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	_, err := logging.Setup(logging.Config{Level: "warn"}, &buf)
	require.NoError(t, err)
	log.Info().Msg("quiet")
	assert.Zero(t, buf.Len())

	_, err = logging.Setup(logging.Config{Level: "loud"}, &buf)
	assert.Error(t, err)
}
