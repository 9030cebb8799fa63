package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateTaskID means two input Tasks declared the same id.
type ErrDuplicateTaskID struct {
	ID string
}

func (e *ErrDuplicateTaskID) Error() string { return fmt.Sprintf("duplicate task id: %q", e.ID) }

// ErrMissingDependency means a Task named a dependsOn id that doesn't exist.
type ErrMissingDependency struct {
	TaskID       string
	DependencyID string
}

func (e *ErrMissingDependency) Error() string {
	return fmt.Sprintf("task %q depends on missing task %q", e.TaskID, e.DependencyID)
}

// ErrCircularDependency means the dependency graph contains a cycle. Path is
// the cycle walked from first occurrence to re-entry, so Path[0] == Path[len(Path)-1].
type ErrCircularDependency struct {
	Path []string
}

func (e *ErrCircularDependency) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// Sentinels usable with errors.Is for coarse-grained matching.
var (
	ErrDuplicateTaskIDKind   = errors.New("DuplicateTaskId")
	ErrMissingDependencyKind = errors.New("MissingDependency")
	ErrCircularDepKind       = errors.New("CircularDependency")
)

func (e *ErrDuplicateTaskID) Unwrap() error   { return ErrDuplicateTaskIDKind }
func (e *ErrMissingDependency) Unwrap() error { return ErrMissingDependencyKind }
func (e *ErrCircularDependency) Unwrap() error { return ErrCircularDepKind }
