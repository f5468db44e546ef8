package logging

import (
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestInitLog(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	assert.Error(t, InitLog("loud", "console"))

	path := filepath.Join(t.TempDir(), "logs", "sideloader.log")
	require.NoError(t, InitLog("debug", path))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.WithField("run", "abc").Debug("working directory created")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "working directory created")
	assert.Contains(t, string(content), "run=abc")

	require.NoError(t, InitLog("info", "console"))
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
