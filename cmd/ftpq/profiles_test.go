package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ftpq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProfiles(t *testing.T) {
	t.Parallel()

	path := writeProfiles(t, `
profiles:
  prod:
    host: ftp.prod.example.com
    port: 2121
    user: deployer
    password: hunter2
    active: true
  staging:
    host: ftp.staging.example.com
    ascii: true
`)

	p, err := loadProfiles(path)
	require.NoError(t, err)

	prod, err := p.lookup("prod")
	require.NoError(t, err)
	assert.Equal(t, "ftp.prod.example.com", prod.Host)
	assert.Equal(t, 2121, prod.Port)
	assert.Equal(t, "deployer", prod.User)
	assert.Equal(t, "hunter2", prod.Password)
	assert.True(t, prod.Active)
	assert.False(t, prod.ASCII)

	// Omitted port defaults to 21.
	staging, err := p.lookup("staging")
	require.NoError(t, err)
	assert.Equal(t, 21, staging.Port)
	assert.True(t, staging.ASCII)
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	t.Parallel()

	p, err := loadProfiles(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, p.Profiles)

	_, err = p.lookup("anything")
	assert.Error(t, err)
}

func TestLoadProfiles_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeProfiles(t, "profiles: [not a map")
	_, err := loadProfiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadProfiles_EmptyFile(t *testing.T) {
	t.Parallel()

	p, err := loadProfiles(writeProfiles(t, ""))
	require.NoError(t, err)
	assert.NotNil(t, p.Profiles)
}
