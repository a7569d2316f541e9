//
//  Copyright © Manetu Inc. All rights reserved.
//

package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/compiler"
	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSampleProgram(t *testing.T) string {
	t.Helper()
	m, err := ast.Parse("policy.rego", `package demo

default allow = false

allow if {
	input.user == "alice"
}
`, ast.ParserOptions{})
	require.NoError(t, err)

	prog, err := compiler.Compile([]*ast.Module{m}, nil, []string{"data.demo.allow"})
	require.NoError(t, err)

	encoded, err := prog.SerializeBinary()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "program.bin")
	require.NoError(t, os.WriteFile(path, encoded, 0600))
	return path
}

func TestLoadProgramRoundTrip(t *testing.T) {
	path := writeSampleProgram(t)
	prog, err := loadProgram(path)
	require.NoError(t, err)
	assert.Contains(t, prog.EntryPoints, "data.demo.allow")
}

func TestLoadProgramMissingFile(t *testing.T) {
	_, err := loadProgram(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestLoadInputDefaultsToEmptyObject(t *testing.T) {
	v, err := loadInput("")
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, v.Kind())
}

func TestLoadInputFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user":"alice"}`), 0600))

	v, err := loadInput(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Get(value.NewString("user")).ToInterface())
}
