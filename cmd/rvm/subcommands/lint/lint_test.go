//
//  Copyright © Manetu Inc. All rights reserved.
//

package lint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempRego(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.rego")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLintFileValidSource(t *testing.T) {
	path := writeTempRego(t, "package demo\n\nallow if { input.user == \"alice\" }\n")
	m, err := lintFile(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Package)
}

func TestLintFileSyntaxError(t *testing.T) {
	path := writeTempRego(t, "package demo\n\nallow if { ===\n")
	_, err := lintFile(path)
	assert.Error(t, err)
}

func TestLintFileMissing(t *testing.T) {
	_, err := lintFile(filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}
