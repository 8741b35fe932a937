package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// SecurityMethod selects how credentials are stored on disk.
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// keyDerivationMessage is the fixed payload signed by the SSH key to derive
// the AES key. Changing it invalidates every encrypted credential file.
const keyDerivationMessage = "sova-credentials-key-derivation-v1"

// EncryptionManager encrypts and decrypts credential blobs with AES-256-GCM.
type EncryptionManager struct {
	key []byte
}

// NewEncryptionManager wraps a raw 32-byte AES key.
func NewEncryptionManager(key []byte) (*EncryptionManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &EncryptionManager{key: key}, nil
}

// NewEncryptionManagerFromSSH derives the AES key from an SSH signer.
func NewEncryptionManagerFromSSH(signer ssh.Signer) (*EncryptionManager, error) {
	key, err := DeriveAESKeyFromSSH(signer)
	if err != nil {
		return nil, err
	}
	return NewEncryptionManager(key)
}

// DeriveAESKeyFromSSH signs a fixed message with the SSH key and hashes the
// signature blob into a 32-byte AES key. The same key always yields the same
// AES key, so credentials survive restarts.
func DeriveAESKeyFromSSH(signer ssh.Signer) ([]byte, error) {
	signature, err := signer.Sign(rand.Reader, []byte(keyDerivationMessage))
	if err != nil {
		return nil, fmt.Errorf("failed to sign key derivation message: %w", err)
	}
	key := sha256.Sum256(signature.Blob)
	return key[:], nil
}

// Encrypt seals plaintext as [nonce|ciphertext+tag].
func (em *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(em.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (em *EncryptionManager) Decrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(em.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted data too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
