package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// LoadSSHPrivateKey parses an unencrypted SSH private key file.
func LoadSSHPrivateKey(path string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key %s: %w", path, err)
	}
	return signer, nil
}

// LoadSSHPrivateKeyWithPassphrase parses a passphrase-protected SSH key.
func LoadSSHPrivateKeyWithPassphrase(path string, passphrase []byte) (ssh.Signer, error) {
	keyData, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKeyWithPassphrase(keyData, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key %s: %w", path, err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether the key at path needs a passphrase.
func IsSSHKeyEncrypted(path string) (bool, error) {
	keyData, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return false, fmt.Errorf("failed to read SSH key %s: %w", path, err)
	}

	_, err = ssh.ParsePrivateKey(keyData)
	if err == nil {
		return false, nil
	}
	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		return true, nil
	}
	if strings.Contains(err.Error(), "encrypted") {
		return true, nil
	}
	return false, err
}
