package auth

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_Valid(t *testing.T) {
	assert.False(t, (&Credentials{}).Valid(), "empty token")
	assert.True(t, (&Credentials{Token: "t"}).Valid(), "no expiry means valid")
	assert.True(t, (&Credentials{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}).Valid())
	assert.False(t, (&Credentials{Token: "t", ExpiresAt: time.Now().Add(-time.Minute)}).Valid())

	var nilCreds *Credentials
	assert.False(t, nilCreds.Valid())
}

func TestCredentials_Apply(t *testing.T) {
	creds := &Credentials{Token: "tok", Cookie: "sid=1"}
	req, _ := http.NewRequest(http.MethodGet, "https://x.test/api", nil)
	creds.Apply(req)

	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, "sid=1", req.Header.Get("Cookie"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	want := &Credentials{
		Token:     "round-trip-token",
		Cookie:    "sid=42",
		BaseURL:   "https://portal.alsoenergy.com",
		ExpiresAt: time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.Cookie, got.Cookie)
	assert.Equal(t, want.BaseURL, got.BaseURL)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
}
