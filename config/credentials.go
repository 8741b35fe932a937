package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials holds every secret the bot needs. Secrets never live in the
// main config file.
type Credentials struct {
	TelegramToken   string `toml:"telegram_token,omitempty" json:"telegram_token,omitempty"`
	GigaChatAuthKey string `toml:"gigachat_auth_key,omitempty" json:"gigachat_auth_key,omitempty"`
	OpenAIAPIKey    string `toml:"openai_api_key,omitempty" json:"openai_api_key,omitempty"`
	AnthropicAPIKey string `toml:"anthropic_api_key,omitempty" json:"anthropic_api_key,omitempty"`
}

const (
	plainCredentialsFile     = "credentials.toml"
	encryptedCredentialsFile = "credentials.enc"
)

// CredentialStore reads and writes the credential file. With SecuritySSHKey
// the file is JSON sealed by the encryption manager; with SecurityPlainText
// it is a TOML file readable by the owner only.
type CredentialStore struct {
	configDir string
	method    SecurityMethod
	crypto    *EncryptionManager
}

// NewCredentialStore builds a store. crypto is required for SecuritySSHKey
// and ignored otherwise.
func NewCredentialStore(configDir string, method SecurityMethod, crypto *EncryptionManager) (*CredentialStore, error) {
	if method == SecuritySSHKey && crypto == nil {
		return nil, fmt.Errorf("ssh_key security requires an encryption manager")
	}
	return &CredentialStore{configDir: configDir, method: method, crypto: crypto}, nil
}

// Load reads stored credentials. A missing file yields empty credentials so
// environment variables can provide everything.
func (cs *CredentialStore) Load() (*Credentials, error) {
	creds := &Credentials{}

	switch cs.method {
	case SecuritySSHKey:
		path := filepath.Join(cs.configDir, encryptedCredentialsFile)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return creds, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", err)
		}
		plaintext, err := cs.crypto.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
		}
		if err := json.Unmarshal(plaintext, creds); err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
	default:
		path := filepath.Join(cs.configDir, plainCredentialsFile)
		if !FileExists(path) {
			return creds, nil
		}
		if _, err := toml.DecodeFile(path, creds); err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
	}

	return creds, nil
}

// Save writes the credential file with owner-only permissions.
func (cs *CredentialStore) Save(creds *Credentials) error {
	switch cs.method {
	case SecuritySSHKey:
		plaintext, err := json.Marshal(creds)
		if err != nil {
			return fmt.Errorf("failed to marshal credentials: %w", err)
		}
		sealed, err := cs.crypto.Encrypt(plaintext)
		if err != nil {
			return fmt.Errorf("failed to encrypt credentials: %w", err)
		}
		path := filepath.Join(cs.configDir, encryptedCredentialsFile)
		if err := os.WriteFile(path, sealed, 0600); err != nil {
			return fmt.Errorf("failed to write credentials: %w", err)
		}
	default:
		path := filepath.Join(cs.configDir, plainCredentialsFile)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to open credentials file: %w", err)
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(creds); err != nil {
			return fmt.Errorf("failed to encode credentials: %w", err)
		}
	}
	return nil
}

// ApplyEnvOverrides lets environment variables override stored secrets.
func (c *Credentials) ApplyEnvOverrides() {
	if v := os.Getenv("SOVA_TELEGRAM_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("SOVA_GIGACHAT_AUTH_KEY"); v != "" {
		c.GigaChatAuthKey = v
	}
	if v := os.Getenv("SOVA_OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv("SOVA_ANTHROPIC_API_KEY"); v != "" {
		c.AnthropicAPIKey = v
	}
}

// LoadCredentials resolves the credential store from the config, loads the
// stored secrets, and applies environment overrides on top.
func LoadCredentials(cfg *Config) (*Credentials, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}

	method := SecurityMethod(cfg.Security.Method)
	var crypto *EncryptionManager
	if method == SecuritySSHKey {
		if cfg.Security.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh_key security requires security.ssh_key_path")
		}
		signer, err := LoadSSHPrivateKey(cfg.Security.SSHKeyPath)
		if err != nil {
			return nil, err
		}
		crypto, err = NewEncryptionManagerFromSSH(signer)
		if err != nil {
			return nil, err
		}
	}

	store, err := NewCredentialStore(configDir, method, crypto)
	if err != nil {
		return nil, err
	}
	creds, err := store.Load()
	if err != nil {
		return nil, err
	}
	creds.ApplyEnvOverrides()

	// The main config may carry the bot token for setups without a
	// credential file. Stored and env values win.
	if creds.TelegramToken == "" {
		creds.TelegramToken = cfg.Telegram.Token
	}
	return creds, nil
}
