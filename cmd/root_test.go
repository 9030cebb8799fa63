package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["scheduler"])
	assert.True(t, names["version"])
}

func TestRunDAGFileExecutesHTTPTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "dag.yaml")
	contents := `
name: smoke
tasks:
  - id: fetch
    tool: http
    params:
      url: ` + srv.URL + `
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	err := runDAGFile(context.Background(), path)
	require.NoError(t, err)
}

func TestRunDAGFileMissingFileReturnsError(t *testing.T) {
	err := runDAGFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
