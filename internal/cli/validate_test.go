package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/catalog"
)

func executeValidate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidCatalog(t *testing.T) {
	out, err := executeValidate(t, "text", kitchenCatalogDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Catalog valid (4 entities)")
	assert.Contains(t, out, "  Chef\n")
}

func TestValidateValidCatalogJSON(t *testing.T) {
	out, err := executeValidate(t, "json", "--catalog", kitchenCatalogDir)
	require.NoError(t, err)

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.Valid)
	require.Len(t, response.Data.Entities, 4)

	chef := response.Data.Entities[3]
	assert.Equal(t, "Chef", chef.Name)
	assert.Equal(t, "Cook", chef.Base)
	assert.Equal(t, "CookTable", chef.Table)
	assert.Contains(t, chef.Columns, "LetterOfRecommendation string")
	assert.Contains(t, chef.Columns, "Salary decimal", "inherited columns are listed")
}

func TestValidateDatabase(t *testing.T) {
	out, err := executeValidate(t, "text", "--db", newKitchenDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Catalog valid (3 entities)")
}

func TestValidateInvalidCatalog(t *testing.T) {
	dir := writeCatalogDir(t, `entity: Cook: {
	key: "ID"
	columns: ID: int
}
`)

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, catalog.ErrCodeInvalidTable+": table is required")
}

func TestValidateInvalidCatalogJSON(t *testing.T) {
	dir := writeCatalogDir(t, `entity: Cook: {
	table: "Cook"
	columns: {
		ID:    int
		Photo: "blob"
	}
}
`)

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.False(t, response.Data.Valid)
	require.NotNil(t, response.Data.Error)
	assert.Equal(t, catalog.ErrCodeInvalidType, response.Data.Error.Code)
	assert.Contains(t, response.Data.Error.Message, "blob")
	require.NotNil(t, response.Error)
	assert.Equal(t, catalog.ErrCodeInvalidType, response.Error.Code)
}

func TestValidateCommandErrors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{name: "missing directory", args: []string{"/nonexistent/catalog"}, wantCode: ErrCodeNotFound},
		{name: "empty directory", args: []string{t.TempDir()}, wantCode: catalog.ErrCodeNoFiles},
		{name: "no catalog", args: []string{}, wantCode: ErrCodeBadOptions},
		{name: "missing database", args: []string{"--db", "/nonexistent/kitchen.db"}, wantCode: ErrCodeNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := executeValidate(t, "json", tc.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var response CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &response))
			require.NotNil(t, response.Error)
			assert.Equal(t, tc.wantCode, response.Error.Code)
		})
	}
}

func TestValidateDirectoryGivenTwice(t *testing.T) {
	_, err := executeValidate(t, "text", kitchenCatalogDir, "--catalog", kitchenCatalogDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
