// Package test provides small shared helpers for _test.go files across the
// module, mirroring the teacher repo's internal/test package.
package test

import "github.com/flowcore/taskrunner/internal/logger"

// NewLogger returns a Logger suitable for tests: plain text, debug enabled.
func NewLogger() logger.Logger {
	l, err := logger.NewLogger(logger.NewArgs{Debug: true, Format: logger.FormatText})
	if err != nil {
		panic(err)
	}
	return l
}
