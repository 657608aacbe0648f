package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fm.log")
	require.NoError(t, Init(Config{Level: "debug", Format: "json", OutputPath: path}))
	t.Cleanup(func() { _ = Init(Config{Level: "error", OutputPath: "stderr"}) })

	Debug("folder listed", String("folder_id", "F1"), Int("items", 3))
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"folder listed"`)
	assert.Contains(t, string(data), `"folder_id":"F1"`)
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fm.log")
	require.NoError(t, Init(Config{Level: "chatty", Format: "json", OutputPath: path}))
	t.Cleanup(func() { _ = Init(Config{Level: "error", OutputPath: "stderr"}) })

	Debug("hidden")
	Info("shown")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
