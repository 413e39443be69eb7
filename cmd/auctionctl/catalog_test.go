package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseItemArg(t *testing.T) {
	tests := []struct {
		arg       string
		wantName  string
		wantPrice float64
		wantErr   bool
	}{
		{arg: "car=100", wantName: "car", wantPrice: 100},
		{arg: " phone = 10.5", wantName: "phone", wantPrice: 10.5},
		{arg: "car", wantErr: true},
		{arg: "=100", wantErr: true},
		{arg: "car=cheap", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, price, err := parseItemArg(tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantPrice, price)
		})
	}
}

func TestBuildCatalog_ArgsOverrideFile(t *testing.T) {
	path := writeCatalog(t, "items:\n  car: 100\n  phone: 10\n")

	prices, err := buildCatalog(path, []string{"car=80"})

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"car": 80, "phone": 10}, prices)
}

func TestBuildCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		args    []string
	}{
		{name: "malformed yaml", content: "items: [car"},
		{name: "empty items", content: "items: {}\n"},
		{name: "non numeric price", content: "items:\n  car: cheap\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildCatalog(writeCatalog(t, tt.content), tt.args)
			require.Error(t, err)
		})
	}
}

func TestBuildCatalog_MissingFile(t *testing.T) {
	_, err := buildCatalog(filepath.Join(t.TempDir(), "nope.yaml"), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read catalog")
}

func TestBuildCatalog_Empty(t *testing.T) {
	_, err := buildCatalog("", nil)

	assert.ErrorIs(t, err, errEmptyCatalog)
}
