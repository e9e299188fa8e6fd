// Package cryptox wraps the cryptographic primitives used by the security
// toolkit: authenticated symmetric encryption and password hashing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"golang.org/x/crypto/hkdf"
)

// ErrDecrypt is returned for any ciphertext that does not authenticate:
// wrong key, truncated input, bad encoding or tampering.
var ErrDecrypt = errors.New("decryption failed")

var hkdfInfo = []byte("inventory-auth/aes-256-gcm")

// DeriveKey stretches an application secret of any length into a 32-byte
// AES-256 key with HKDF-SHA256.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty encryption secret")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under a key derived from secret.
// A fresh random nonce is used for every call. The result is
// base64url(nonce || ciphertext || tag).
func Encrypt(plaintext, secret []byte) (string, error) {
	aesgcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It never returns partial plaintext.
func Decrypt(encoded string, secret []byte) ([]byte, error) {
	aesgcm, err := newGCM(secret)
	if err != nil {
		return nil, err
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(raw) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, ErrDecrypt
	}

	nonce, ciphertext := raw[:aesgcm.NonceSize()], raw[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(secret []byte) (cipher.AEAD, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
