package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"

	"github.com/pdfseal/pdfseal/config"
)

func TestConfig(t *testing.T) {
	const configContent = `
name = "Test Signer"
location = "Rotterdam"
reason = "Approval"
capacity = 16384

[tsa]
url = "http://timestamp.example.com/tsa"
fallback_url = "http://fallback.example.com/tsa"
username = "user"
password = "secret"
timeout_seconds = 30

[ocsp]
timeout_seconds = 5
`

	c := config.Default()
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	assert.Equal(t, "Test Signer", c.Name)
	assert.Equal(t, "Rotterdam", c.Location)
	assert.Equal(t, "Approval", c.Reason)
	assert.Equal(t, uint32(16384), c.Capacity)

	// TSA
	assert.Equal(t, "http://timestamp.example.com/tsa", c.TSA.URL)
	assert.Equal(t, "http://fallback.example.com/tsa", c.TSA.FallbackURL)
	assert.Equal(t, "user", c.TSA.Username)
	assert.Equal(t, "secret", c.TSA.Password)
	assert.Equal(t, 30, c.TSA.TimeoutSeconds)

	// OCSP
	assert.Equal(t, 5, c.OCSP.TimeoutSeconds)

	assert.NoError(t, c.ValidateFields())
}

func TestDefaults(t *testing.T) {
	c := config.Default()
	assert.Equal(t, 15, c.TSA.TimeoutSeconds)
	assert.Equal(t, 10, c.OCSP.TimeoutSeconds)
	assert.False(t, c.OCSP.Disabled)
}

func TestValidation(t *testing.T) {
	c := config.Default()
	c.TSA.URL = "not a url"
	assert.Error(t, c.ValidateFields())

	c = config.Default()
	c.TSA.FallbackURL = "http://fallback.example.com/tsa"
	assert.Error(t, c.ValidateFields())
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfseal.conf")
	content := []byte("name = \"From File\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := config.Read(path)
	assert.NoError(t, err)
	assert.Equal(t, "From File", c.Name)
	assert.Equal(t, 15, c.TSA.TimeoutSeconds)

	_, err = config.Read(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}
