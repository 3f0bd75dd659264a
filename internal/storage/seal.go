package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// sealMagic prefixes archives written by Seal.
// Layout: magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
var sealMagic = []byte("GCM3NCR0")

const (
	saltLen    = 16
	nonceLen   = 12
	kdfRounds  = 100000
	sealFormat = "GCM3NCR0"
)

// ErrNotSealed is returned by Unseal for data without the seal header.
var ErrNotSealed = errors.New("data is not sealed")

func sealKey(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfRounds, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts data with a key derived from password.
func Seal(data []byte, password string) ([]byte, error) {
	head := make([]byte, len(sealMagic)+saltLen+nonceLen)
	copy(head, sealMagic)
	salt := head[len(sealMagic) : len(sealMagic)+saltLen]
	nonce := head[len(sealMagic)+saltLen:]
	if _, err := rand.Read(head[len(sealMagic):]); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	gcm, err := sealKey(password, salt)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(head, nonce, data, nil), nil
}

// IsSealed reports whether data starts with the seal header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// Unseal reverses Seal.
func Unseal(data []byte, password string) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrNotSealed
	}
	if len(data) < len(sealMagic)+saltLen+nonceLen+16 {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(data))
	}
	off := len(sealMagic)
	salt := data[off : off+saltLen]
	nonce := data[off+saltLen : off+saltLen+nonceLen]
	gcm, err := sealKey(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[off+saltLen+nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}
