// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandPath_TildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/guardians.json", filepath.Join(home, "guardians.json")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", home},
	}

	for _, tt := range tests {
		result := ExpandPath(tt.input)
		if result != tt.expected {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	if paths.ConfigDir == "" {
		t.Error("ConfigDir should not be empty")
	}
	if paths.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if paths.KeystorePath == "" {
		t.Error("KeystorePath should not be empty")
	}
	if paths.RegistryPath == "" {
		t.Error("RegistryPath should not be empty")
	}
	if paths.NullifierPath == "" {
		t.Error("NullifierPath should not be empty")
	}
	if paths.InboxDir == "" {
		t.Error("InboxDir should not be empty")
	}
}

func TestEnsureDirectories(t *testing.T) {
	// Create a temporary directory for testing
	tmpDir := t.TempDir()

	paths := Paths{
		ConfigDir: filepath.Join(tmpDir, "config", "aegisvault"),
		DataDir:   filepath.Join(tmpDir, "data", "aegisvault"),
		InboxDir:  filepath.Join(tmpDir, "data", "aegisvault", "inbox"),
	}

	// Directories should not exist yet
	if _, err := os.Stat(paths.ConfigDir); !os.IsNotExist(err) {
		t.Fatal("ConfigDir should not exist before EnsureDirectories")
	}
	if _, err := os.Stat(paths.InboxDir); !os.IsNotExist(err) {
		t.Fatal("InboxDir should not exist before EnsureDirectories")
	}

	// Create directories
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	// Verify directories exist
	for _, dir := range []string{paths.ConfigDir, paths.DataDir, paths.InboxDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("%s should exist after EnsureDirectories: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s should be a directory", dir)
		}
	}

	// Calling EnsureDirectories again should be idempotent
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories should be idempotent: %v", err)
	}
}

func TestKeeperConfig_LoadFromTOML(t *testing.T) {
	tomlContent := `
[registry]
snapshot_path = "/var/lib/aegisvault/guardians.json"

[nullifiers]
snapshot_path = "/var/lib/aegisvault/nullifiers.bin"

[inbox]
dir = "/var/lib/aegisvault/inbox"
queue_size = 128

[policy]
require_fresh_proofs = false
max_future_skew_seconds = 60
verify_workers = 4
`
	tmpFile := filepath.Join(t.TempDir(), "keeper.toml")
	if err := os.WriteFile(tmpFile, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadKeeperConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadKeeperConfig failed: %v", err)
	}

	if cfg.Registry.SnapshotPath != "/var/lib/aegisvault/guardians.json" {
		t.Errorf("unexpected registry path %s", cfg.Registry.SnapshotPath)
	}
	if cfg.Inbox.QueueSize != 128 {
		t.Errorf("expected queue size 128, got %d", cfg.Inbox.QueueSize)
	}
	if cfg.Policy.RequireFreshProofs {
		t.Error("expected require_fresh_proofs false")
	}
	if cfg.Policy.VerifyWorkers != 4 {
		t.Errorf("expected 4 verify workers, got %d", cfg.Policy.VerifyWorkers)
	}
}

func TestCLIConfig_LoadFromTOML(t *testing.T) {
	tomlContent := `
[keystore]
path = "/secure/keystore.enc"

[registry]
snapshot_path = "/secure/guardians.json"

[bundles]
outbox_dir = "/secure/outbox"
`
	tmpFile := filepath.Join(t.TempDir(), "cli.toml")
	if err := os.WriteFile(tmpFile, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadCLIConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadCLIConfig failed: %v", err)
	}

	if cfg.Keystore.Path != "/secure/keystore.enc" {
		t.Errorf("unexpected keystore path %s", cfg.Keystore.Path)
	}
	if cfg.Bundles.OutboxDir != "/secure/outbox" {
		t.Errorf("unexpected outbox dir %s", cfg.Bundles.OutboxDir)
	}
}

func TestKeeperConfig_Defaults(t *testing.T) {
	cfg := DefaultKeeperConfig()

	if cfg.Inbox.QueueSize != 64 {
		t.Errorf("expected default queue size 64, got %d", cfg.Inbox.QueueSize)
	}
	if cfg.Nullifiers.SnapshotIntervalSeconds != 300 {
		t.Errorf("expected default snapshot interval 300s, got %d", cfg.Nullifiers.SnapshotIntervalSeconds)
	}
	if !cfg.Policy.RequireFreshProofs {
		t.Error("expected fresh proofs required by default")
	}
	if cfg.Policy.MaxFutureSkewSeconds != 300 {
		t.Errorf("expected default skew 300s, got %d", cfg.Policy.MaxFutureSkewSeconds)
	}
	if cfg.Policy.VerifyWorkers != 2 {
		t.Errorf("expected default 2 verify workers, got %d", cfg.Policy.VerifyWorkers)
	}
}

func TestCLIConfig_Defaults(t *testing.T) {
	cfg := DefaultCLIConfig()

	if cfg.Keystore.Path == "" {
		t.Error("default keystore path should not be empty")
	}
	if cfg.Bundles.OutboxDir == "" {
		t.Error("default outbox dir should not be empty")
	}
	// The CLI drops bundles straight into the keeper inbox by default.
	if cfg.Bundles.OutboxDir != DefaultPaths().InboxDir {
		t.Errorf("default outbox %s should match keeper inbox %s",
			cfg.Bundles.OutboxDir, DefaultPaths().InboxDir)
	}
}

func TestKeeperConfig_AuthzConfig(t *testing.T) {
	cfg := DefaultKeeperConfig()
	cfg.Policy.MaxFutureSkewSeconds = 120
	cfg.Policy.VerifyWorkers = 3

	ac := cfg.AuthzConfig()

	if !ac.Enabled {
		t.Error("keeper authz config should always be enabled")
	}
	if ac.MaxFutureSkew != 2*time.Minute {
		t.Errorf("expected 2m skew, got %v", ac.MaxFutureSkew)
	}
	if ac.VerifyWorkers != 3 {
		t.Errorf("expected 3 workers, got %d", ac.VerifyWorkers)
	}
	if err := ac.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}

func TestKeeperConfig_PathExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tomlContent := `
[registry]
snapshot_path = "~/vault/guardians.json"

[inbox]
dir = "~/vault/inbox"
`
	tmpFile := filepath.Join(t.TempDir(), "keeper.toml")
	if err := os.WriteFile(tmpFile, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadKeeperConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadKeeperConfig failed: %v", err)
	}

	// Verify paths are expanded
	expectedRegistry := filepath.Join(home, "vault", "guardians.json")
	if cfg.Registry.SnapshotPath != expectedRegistry {
		t.Errorf("expected registry path %s, got %s", expectedRegistry, cfg.Registry.SnapshotPath)
	}

	expectedInbox := filepath.Join(home, "vault", "inbox")
	if cfg.Inbox.Dir != expectedInbox {
		t.Errorf("expected inbox dir %s, got %s", expectedInbox, cfg.Inbox.Dir)
	}

	// Fields absent from the file keep their defaults
	if cfg.Nullifiers.SnapshotPath != DefaultPaths().NullifierPath {
		t.Errorf("expected default nullifier path, got %s", cfg.Nullifiers.SnapshotPath)
	}
}

func TestLoadKeeperConfig_FileNotFound(t *testing.T) {
	_, err := LoadKeeperConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadCLIConfig_FileNotFound(t *testing.T) {
	_, err := LoadCLIConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadKeeperConfig_InvalidTOML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.toml")
	if err := os.WriteFile(tmpFile, []byte("this is not valid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadKeeperConfig(tmpFile)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}
