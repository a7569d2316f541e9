//
//  Copyright © Manetu Inc. All rights reserved.
//

package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadModulesReadsEachFile(t *testing.T) {
	a := writeTempFile(t, "a.rego", "package a\n\nallow if { true }\n")
	b := writeTempFile(t, "b.rego", "package b\n\nallow if { true }\n")

	modules, err := loadModules([]string{a, b})
	require.NoError(t, err)
	assert.Len(t, modules, 2)
	assert.Contains(t, modules[a], "package a")
	assert.Contains(t, modules[b], "package b")
}

func TestLoadModulesMissingFile(t *testing.T) {
	_, err := loadModules([]string{filepath.Join(t.TempDir(), "missing.rego")})
	assert.Error(t, err)
}

func TestLoadDataEmptyPathReturnsNil(t *testing.T) {
	data, err := loadData("")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestLoadDataJSON(t *testing.T) {
	path := writeTempFile(t, "data.json", `{"threshold": 3}`)
	data, err := loadData(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"threshold": 3}`, string(data))
}

func TestLoadDataYAMLIsTranscodedToJSON(t *testing.T) {
	path := writeTempFile(t, "data.yaml", "threshold: 3\n")
	data, err := loadData(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"threshold": 3}`, string(data))
}
