// Package vault encrypts and decrypts stored API keys with AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/and161185/manus-bridge/internal/errs"
)

// Blob layout: hex(nonce[16]) || hex(tag[16]) || hex(ciphertext).
// Segment boundaries are positional, not length-prefixed.
const (
	nonceLen = 16
	tagLen   = 16

	nonceHexLen = nonceLen * 2
	tagHexLen   = tagLen * 2
)

// devSecret is used when no secret is configured. Dev/test only: every
// deployment sharing it can decrypt every other's blobs.
const devSecret = "manus-bridge-dev-secret"

// Vault performs authenticated encryption with a key derived from a shared secret.
type Vault struct {
	key [sha256.Size]byte
}

// New derives the symmetric key as SHA-256 of the configured secret.
// An empty secret falls back to a fixed dev secret.
func New(secret string) *Vault {
	if secret == "" {
		secret = devSecret
	}
	return &Vault{key: sha256.Sum256([]byte(secret))}
}

// UsingDevSecret reports whether the vault was built without a configured secret.
func UsingDevSecret(secret string) bool { return secret == "" }

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceLen)
}

// Encrypt seals plaintext with a fresh random nonce. Two calls with the same
// plaintext produce different blobs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := v.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag after the ciphertext; the blob stores it in front.
	ct, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]

	out := make([]byte, 0, nonceHexLen+tagHexLen+len(ct)*2)
	out = append(out, hex.EncodeToString(nonce)...)
	out = append(out, hex.EncodeToString(tag)...)
	out = append(out, hex.EncodeToString(ct)...)
	return string(out), nil
}

// Decrypt opens a blob produced by Encrypt. Tampering, a wrong key, or a
// malformed blob all surface as errs.ErrDecryptAuth.
func (v *Vault) Decrypt(blob string) (string, error) {
	if len(blob) < nonceHexLen+tagHexLen {
		return "", fmt.Errorf("blob too short: %w", errs.ErrDecryptAuth)
	}
	nonce, err := hex.DecodeString(blob[:nonceHexLen])
	if err != nil {
		return "", fmt.Errorf("nonce: %w", errs.ErrDecryptAuth)
	}
	tag, err := hex.DecodeString(blob[nonceHexLen : nonceHexLen+tagHexLen])
	if err != nil {
		return "", fmt.Errorf("tag: %w", errs.ErrDecryptAuth)
	}
	ct, err := hex.DecodeString(blob[nonceHexLen+tagHexLen:])
	if err != nil {
		return "", fmt.Errorf("ciphertext: %w", errs.ErrDecryptAuth)
	}

	aead, err := v.aead()
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", errs.ErrDecryptAuth
	}
	return string(plaintext), nil
}
