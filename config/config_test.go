package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SOVA_DATA_DIR", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.ID != "gigachat" {
		t.Errorf("expected default provider gigachat, got %q", cfg.Provider.ID)
	}
	if cfg.Provider.Scope != "GIGACHAT_API_PERS" {
		t.Errorf("expected default scope, got %q", cfg.Provider.Scope)
	}
	if cfg.Security.Method != string(SecurityPlainText) {
		t.Errorf("expected plaintext security default, got %q", cfg.Security.Method)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOVA_DATA_DIR", "")
	path := filepath.Join(dir, "config.toml")
	content := `
data_directory = "` + dir + `"
default_system_prompt = "You are a helpful owl."

[telegram]
allowed_chat_ids = [42, 1001]

[provider]
id = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"

[retrieval]
docs_dir = "docs"
chunk_size = 800
chunk_overlap = 100

[[mcp_servers]]
id = "weather"
command = "npx"
args = ["-y", "weather-server"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.ID != "ollama" || cfg.Provider.Model != "llama3.1:latest" {
		t.Errorf("provider not loaded: %+v", cfg.Provider)
	}
	if len(cfg.Telegram.AllowedChatIDs) != 2 || cfg.Telegram.AllowedChatIDs[0] != 42 {
		t.Errorf("allowed chat ids not loaded: %v", cfg.Telegram.AllowedChatIDs)
	}
	if cfg.Retrieval.ChunkSize != 800 || cfg.Retrieval.ChunkOverlap != 100 {
		t.Errorf("retrieval settings not loaded: %+v", cfg.Retrieval)
	}
	if len(cfg.MCPServers) != 1 || cfg.MCPServers[0].ID != "weather" {
		t.Errorf("mcp servers not loaded: %+v", cfg.MCPServers)
	}
	if cfg.DefaultSystemPrompt != "You are a helpful owl." {
		t.Errorf("system prompt not loaded: %q", cfg.DefaultSystemPrompt)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOVA_DATA_DIR", t.TempDir())
	t.Setenv("SOVA_PROVIDER", "openai")
	t.Setenv("SOVA_MODEL", "gpt-4o-mini")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.ID != "openai" {
		t.Errorf("SOVA_PROVIDER override ignored, got %q", cfg.Provider.ID)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("SOVA_MODEL override ignored, got %q", cfg.Provider.Model)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/data", filepath.Join(home, "data")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	em, err := NewEncryptionManager(key)
	if err != nil {
		t.Fatalf("NewEncryptionManager failed: %v", err)
	}

	plaintext := []byte(`{"telegram_token":"12345:abc"}`)
	sealed, err := em.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains(sealed, []byte("telegram_token")) {
		t.Error("ciphertext leaks plaintext")
	}

	opened, err := em.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip mismatch: %q", opened)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	em1, _ := NewEncryptionManager(bytes.Repeat([]byte{0x01}, 32))
	em2, _ := NewEncryptionManager(bytes.Repeat([]byte{0x02}, 32))

	sealed, err := em1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := em2.Decrypt(sealed); err == nil {
		t.Error("decryption with the wrong key should fail")
	}
}

func TestEncryptionManagerRejectsBadKeySize(t *testing.T) {
	if _, err := NewEncryptionManager([]byte("short")); err == nil {
		t.Error("expected error for non-32-byte key")
	}
}

func TestCredentialStorePlainTextRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCredentialStore(dir, SecurityPlainText, nil)
	if err != nil {
		t.Fatalf("NewCredentialStore failed: %v", err)
	}

	want := &Credentials{TelegramToken: "12345:abc", GigaChatAuthKey: "base64key"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.TelegramToken != want.TelegramToken || got.GigaChatAuthKey != want.GigaChatAuthKey {
		t.Errorf("round trip mismatch: %+v", got)
	}

	info, err := os.Stat(filepath.Join(dir, plainCredentialsFile))
	if err != nil {
		t.Fatalf("stat credentials file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestCredentialStoreEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	em, _ := NewEncryptionManager(bytes.Repeat([]byte{0x42}, 32))
	store, err := NewCredentialStore(dir, SecuritySSHKey, em)
	if err != nil {
		t.Fatalf("NewCredentialStore failed: %v", err)
	}

	want := &Credentials{TelegramToken: "12345:abc"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, encryptedCredentialsFile))
	if err != nil {
		t.Fatalf("read encrypted file: %v", err)
	}
	if strings.Contains(string(raw), "12345:abc") {
		t.Error("encrypted file leaks the token")
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.TelegramToken != want.TelegramToken {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCredentialStoreMissingFileIsEmpty(t *testing.T) {
	store, _ := NewCredentialStore(t.TempDir(), SecurityPlainText, nil)
	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if creds.TelegramToken != "" {
		t.Error("expected empty credentials for a missing file")
	}
}

func TestLoadCredentialsFallsBackToConfigToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SOVA_TELEGRAM_TOKEN", "")

	cfg := Defaults()
	cfg.Telegram.Token = "config-token"

	creds, err := LoadCredentials(cfg)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.TelegramToken != "config-token" {
		t.Errorf("config token not applied: %q", creds.TelegramToken)
	}

	// The environment still wins over the config value.
	t.Setenv("SOVA_TELEGRAM_TOKEN", "env-token")
	creds, err = LoadCredentials(cfg)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.TelegramToken != "env-token" {
		t.Errorf("env token should win over the config token: %q", creds.TelegramToken)
	}
}

func TestCredentialEnvOverrides(t *testing.T) {
	t.Setenv("SOVA_TELEGRAM_TOKEN", "env-token")
	t.Setenv("SOVA_GIGACHAT_AUTH_KEY", "env-auth")

	creds := &Credentials{TelegramToken: "file-token"}
	creds.ApplyEnvOverrides()

	if creds.TelegramToken != "env-token" {
		t.Errorf("env override ignored: %q", creds.TelegramToken)
	}
	if creds.GigaChatAuthKey != "env-auth" {
		t.Errorf("env auth key ignored: %q", creds.GigaChatAuthKey)
	}
}
