package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"NHK-Radio-GO/internal/entity"
)

// KeySize AES-128 key length in bytes.
const KeySize = 16

// pkcs7Unpad removes pkcs7 padding, every pad byte must equal the pad length.
func pkcs7Unpad(data []byte) ([]byte, error) {
	length := len(data)
	if length == 0 {
		return nil, fmt.Errorf("pkcs7: data is empty")
	}
	padSize := int(data[length-1])
	if padSize == 0 || padSize > aes.BlockSize || padSize > length {
		return nil, fmt.Errorf("pkcs7: invalid padding size (%d for data of length %d)", padSize, length)
	}
	for i := 0; i < padSize; i++ {
		if data[length-1-i] != byte(padSize) {
			return nil, fmt.Errorf("pkcs7: invalid padding byte")
		}
	}
	return data[:length-padSize], nil
}

// AES128CBCDecrypt decrypts data using AES-128 CBC mode with PKCS7 padding.
// Any malformed input yields *entity.DecryptionError.
func AES128CBCDecrypt(encrypted, key, iv []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, &entity.DecryptionError{Reason: fmt.Sprintf("key length must be %d bytes, got %d", KeySize, len(key))}
	}
	if len(iv) != aes.BlockSize {
		return nil, &entity.DecryptionError{Reason: fmt.Sprintf("IV length must be %d bytes, got %d", aes.BlockSize, len(iv))}
	}
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return nil, &entity.DecryptionError{Reason: fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(encrypted), aes.BlockSize)}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &entity.DecryptionError{Reason: err.Error()}
	}

	mode := cipher.NewCBCDecrypter(block, iv)
	decrypted := make([]byte, len(encrypted))
	mode.CryptBlocks(decrypted, encrypted)

	unpadded, err := pkcs7Unpad(decrypted)
	if err != nil {
		return nil, &entity.DecryptionError{Reason: err.Error()}
	}
	return unpadded, nil
}

// SequenceIV returns the implicit IV: the media sequence number as a
// 16-byte big-endian integer.
func SequenceIV(seq uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], seq)
	return iv
}

// SegmentIV picks the explicit IV when the playlist declares one.
func SegmentIV(seg *entity.MediaSegment) []byte {
	if len(seg.IV) == aes.BlockSize {
		return seg.IV
	}
	return SequenceIV(seg.SequenceNumber)
}

// DecryptSegment decrypts one segment body with its resolved key.
func DecryptSegment(seg *entity.MediaSegment, data, key []byte) ([]byte, error) {
	return AES128CBCDecrypt(data, key, SegmentIV(seg))
}
