//go:build tools
// +build tools

// Package tools tracks dependencies on binaries not otherwise referenced in the codebase.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/onsi/ginkgo/ginkgo"
)
