package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("admin", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Name)
}

func TestParseTokenRejectsWrongSecretAndExpired(t *testing.T) {
	token, err := GenerateToken("admin", []byte("secret"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("other"))
	require.Error(t, err)

	expired, err := GenerateToken("admin", []byte("secret"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, []byte("secret"))
	require.Error(t, err)
}
