package dag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileParsesTasksAndConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	contents := `
name: nightly-sync
tasks:
  - id: fetch
    tool: http.get
    params:
      url: https://example.com/data
  - id: transform
    tool: transform.json
    dependsOn: [fetch]
    params:
      input: "${fetch.result.body}"
config:
  maxConcurrent: 3
  timeout: 60000
  failureMode: stop
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly-sync", def.Name)
	require.Len(t, def.Tasks, 2)
	assert.Equal(t, "fetch", def.Tasks[0].ID)
	assert.Equal(t, []string{"fetch"}, def.Tasks[1].DependsOn)
	require.NotNil(t, def.Config)
	assert.Equal(t, 3, def.Config.MaxConcurrent)
	assert.Equal(t, "stop", def.Config.FailureMode)
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/to/dag.yaml")
	assert.Error(t, err)
}

