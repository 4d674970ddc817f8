package record

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// GenerateKey returns a fresh random key, url-safe base64 encoded.
func GenerateKey() string {
	var key [keySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(key[:])
}

func decodeKey(key string) (*[keySize]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("malformed key: %v", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(raw))
	}
	var k [keySize]byte
	copy(k[:], raw)
	return &k, nil
}

// Encrypt seals plaintext under the given base64 key and returns a url-safe
// base64 token of nonce+ciphertext.
func Encrypt(plaintext, key string) (string, error) {
	k, err := decodeKey(key)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, k)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. The ciphertext is authenticated,
// so a wrong key always fails instead of yielding garbage.
func Decrypt(token, key string) (string, error) {
	k, err := decodeKey(key)
	if err != nil {
		return "", err
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed token: %v", err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("token too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, k)
	if !ok {
		return "", fmt.Errorf("authentication failed")
	}
	return string(plaintext), nil
}
