//
//  Copyright © Manetu Inc. All rights reserved.
//

package serve

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manetu/rego-rvm/pkg/core/ast"
	"github.com/manetu/rego-rvm/pkg/core/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labstack/echo/v4"
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

func TestLoadProgram(t *testing.T) {
	path := writeSampleProgram(t)
	prog, err := loadProgram(path)
	require.NoError(t, err)
	assert.Contains(t, prog.EntryPoints, "data.demo.allow")
}

func TestDecisionHandlerAllows(t *testing.T) {
	path := writeSampleProgram(t)
	prog, err := loadProgram(path)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/data/demo/allow", strings.NewReader(`{"input":{"user":"alice"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, decisionHandler(prog)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":true`)
}

func TestDecisionHandlerUnknownPath(t *testing.T) {
	path := writeSampleProgram(t)
	prog, err := loadProgram(path)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/data/nope/nope", strings.NewReader(`{"input":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, decisionHandler(prog)(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
