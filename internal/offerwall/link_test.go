package offerwall

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveycash/surveycash-backend/pkg/config"
)

func TestNewBuilderRequiresAppID(t *testing.T) {
	_, err := NewBuilder(config.OfferwallConfig{BaseURL: "https://offers.example.com/index.php"})
	assert.ErrorIs(t, err, errAppIDRequired)
}

func TestBuilderURLSigned(t *testing.T) {
	b, err := NewBuilder(config.OfferwallConfig{
		AppID:      "1234",
		SecureHash: "s3cret",
		BaseURL:    "https://offers.example.com/index.php",
	})
	require.NoError(t, err)

	raw, err := b.URL(Viewer{ExtUserID: "user-1", Username: "neo", Email: "neo@example.com"})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "offers.example.com", parsed.Host)
	q := parsed.Query()
	assert.Equal(t, "1234", q.Get("app_id"))
	assert.Equal(t, "user-1", q.Get("ext_user_id"))
	assert.Equal(t, Signature("user-1", "s3cret"), q.Get("secure_hash"))
	assert.Equal(t, "neo", q.Get("username"))
	assert.Equal(t, "neo@example.com", q.Get("email"))
}

func TestBuilderURLUnsignedFallsBackToEmail(t *testing.T) {
	b, err := NewBuilder(config.OfferwallConfig{AppID: "1", BaseURL: "https://offers.example.com/index.php"})
	require.NoError(t, err)

	raw, err := b.URL(Viewer{Email: "only@example.com"})
	require.NoError(t, err)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "only@example.com", parsed.Query().Get("ext_user_id"))
	assert.Empty(t, parsed.Query().Get("secure_hash"))

	_, err = b.URL(Viewer{})
	assert.Error(t, err)
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "096252a7b87b04f2b7928c04d5a40174", Signature("abc", "xyz"))
	assert.NotEqual(t, Signature("abc", "xyz"), Signature("abd", "xyz"))
}
