package admin

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

// testHash — хеш в формате scripts/generate_hash.go, но с лёгкими параметрами.
func testHash(key string) string {
	salt := []byte("0123456789abcdef")
	hash := argon2.IDKey([]byte(key), salt, 1, 1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=1024,t=1,p=1$%s$%s",
		argon2.Version,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func TestKeyVerifier(t *testing.T) {
	v, err := NewKeyVerifier(testHash("s3cret-admin-key"))
	require.NoError(t, err)

	assert.True(t, v.Verify("s3cret-admin-key"))
	assert.False(t, v.Verify("s3cret-admin-kez"))
	assert.False(t, v.Verify(""))
}

func TestNewKeyVerifierRejectsMalformedHash(t *testing.T) {
	for _, h := range []string{
		"",
		"plain-text",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		_, err := NewKeyVerifier(h)
		assert.Error(t, err, h)
	}
}

func TestTelegramActor(t *testing.T) {
	assert.Equal(t, "tg:-100500", TelegramActor(-100500))
}
