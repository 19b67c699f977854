package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)

	sealed, err := enc.Encrypt("wb-api-key")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "wb-api-key")

	again, err := enc.Encrypt("wb-api-key")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce is random")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "wb-api-key", plain)

	other, err := NewEncryptor("another")
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = enc.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
	_, err = enc.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = NewEncryptor("")
	assert.Error(t, err)
}
