package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(make([]byte, 32))
	require.NoError(t, err)

	blob, err := codec.Encrypt("super-secret")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "super-secret")

	plaintext, err := codec.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "super-secret", plaintext)
}

func TestCodec_EncryptionIsRandomized(t *testing.T) {
	codec, err := NewCodec(make([]byte, 32))
	require.NoError(t, err)

	first, err := codec.Encrypt("same value")
	require.NoError(t, err)
	second, err := codec.Encrypt("same value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewCodec_RejectsWrongKeySize(t *testing.T) {
	_, err := NewCodec(make([]byte, 16))
	assert.ErrorContains(t, err, "must be 32 bytes")

	_, err = NewCodec(nil)
	assert.Error(t, err)
}

func TestNewCodecFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(make([]byte, 32))

	codec, err := NewCodecFromBase64(encoded)
	require.NoError(t, err)

	blob, err := codec.Encrypt("value")
	require.NoError(t, err)
	plaintext, err := codec.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "value", plaintext)

	_, err = NewCodecFromBase64("%%% not base64 %%%")
	assert.ErrorContains(t, err, "decode encryption key")
}

func TestCodec_DecryptRejectsTamperedBlob(t *testing.T) {
	codec, err := NewCodec(make([]byte, 32))
	require.NoError(t, err)

	blob, err := codec.Encrypt("super-secret")
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, err = codec.Decrypt(blob)
	assert.Error(t, err)

	_, err = codec.Decrypt([]byte("short"))
	assert.Error(t, err)
}
