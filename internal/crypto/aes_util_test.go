package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"testing"

	"NHK-Radio-GO/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// encryptCBC pads with PKCS#7 and encrypts, mirroring what the packager does.
func encryptCBC(t *testing.T, plain, key, iv []byte) []byte {
	t.Helper()
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte(nil), plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

func TestAES128CBCDecryptKnownVector(t *testing.T) {
	// NIST SP 800-38A F.2.1, first block
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")

	encrypted := encryptCBC(t, plain, key, iv)
	require.Len(t, encrypted, 32)
	assert.Equal(t, "7649abac8119b246cee98e9b12e9197d", hex.EncodeToString(encrypted[:16]))

	decrypted, err := AES128CBCDecrypt(encrypted, key, iv)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)
}

func TestAES128CBCDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeySize)
	iv := SequenceIV(12345)

	for _, size := range []int{0, 1, 15, 16, 17, 188, 188 * 7} {
		plain := bytes.Repeat([]byte{0x47}, size)
		decrypted, err := AES128CBCDecrypt(encryptCBC(t, plain, key, iv), key, iv)
		require.NoError(t, err, size)
		assert.Equal(t, plain, decrypted, size)
	}
}

func TestAES128CBCDecryptErrors(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	iv := make([]byte, aes.BlockSize)
	valid := encryptCBC(t, []byte("hello, radiru stream"), key, iv)

	// 一个全零明文块，不带填充
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	unpadded := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(unpadded, make([]byte, aes.BlockSize))

	tests := []struct {
		name      string
		encrypted []byte
		key       []byte
		iv        []byte
	}{
		{"short key", valid, key[:8], iv},
		{"short iv", valid, key, iv[:8]},
		{"empty ciphertext", nil, key, iv},
		{"not block multiple", valid[:20], key, iv},
		{"invalid padding", unpadded, key, iv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AES128CBCDecrypt(tt.encrypted, tt.key, tt.iv)
			var decryptErr *entity.DecryptionError
			assert.ErrorAs(t, err, &decryptErr)
		})
	}
}

func TestPKCS7Unpad(t *testing.T) {
	out, err := pkcs7Unpad([]byte{1, 2, 3, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)

	_, err = pkcs7Unpad([]byte{1, 2, 3, 0})
	assert.Error(t, err)
	_, err = pkcs7Unpad([]byte{1, 2, 1, 3})
	assert.Error(t, err)
	_, err = pkcs7Unpad(append(make([]byte, 15), 17))
	assert.Error(t, err)
	_, err = pkcs7Unpad(nil)
	assert.Error(t, err)
}

func TestSequenceIV(t *testing.T) {
	assert.Equal(t, make([]byte, 16), SequenceIV(0))
	assert.Equal(t, mustHex(t, "00000000000000000000000000000001"), SequenceIV(1))
	assert.Equal(t, mustHex(t, "000000000000000000000000075bcd15"), SequenceIV(123456789))
	assert.Equal(t, mustHex(t, "0000000000000000ffffffffffffffff"), SequenceIV(^uint64(0)))
}

func TestDecryptSegmentIVSelection(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	explicit := mustHex(t, "0f0e0d0c0b0a09080706050403020100")
	plain := []byte("segment payload")

	withIV := &entity.MediaSegment{SequenceNumber: 5, IV: explicit}
	out, err := DecryptSegment(withIV, encryptCBC(t, plain, key, explicit), key)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	implicit := &entity.MediaSegment{SequenceNumber: 5}
	out, err = DecryptSegment(implicit, encryptCBC(t, plain, key, SequenceIV(5)), key)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}
