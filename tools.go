//go:build tools
// +build tools

// Package tools tracks Go-based tools run via `go generate` (mockgen) as
// module dependencies.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
