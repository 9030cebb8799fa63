package dag

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// FileDefinition is the on-disk shape of a YAML DAG definition, the
// teacher's primary DAG authoring surface (dagu's internal/digraph loader).
type FileDefinition struct {
	Name   string         `yaml:"name"`
	Tasks  []Task         `yaml:"tasks"`
	Config *ExecConfigDef `yaml:"config,omitempty"`
}

// ExecConfigDef mirrors the optional executor config block of a DAG request.
type ExecConfigDef struct {
	MaxConcurrent int    `yaml:"maxConcurrent,omitempty"`
	TimeoutMS     int    `yaml:"timeout,omitempty"`
	FailureMode   string `yaml:"failureMode,omitempty"`
}

// LoadFile parses a YAML DAG definition from disk.
func LoadFile(path string) (*FileDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dag file %s: %w", path, err)
	}
	var def FileDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing dag file %s: %w", path, err)
	}
	return &def, nil
}
