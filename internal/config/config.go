// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/aegisvault/aegisvault/internal/authz"
)

// Paths holds XDG-compliant paths for AegisVault.
type Paths struct {
	ConfigDir     string // ~/.config/aegisvault
	DataDir       string // ~/.local/share/aegisvault
	KeystorePath  string // ~/.local/share/aegisvault/keystore.enc
	RegistryPath  string // ~/.local/share/aegisvault/guardians.json
	NullifierPath string // ~/.local/share/aegisvault/nullifiers.bin
	InboxDir      string // ~/.local/share/aegisvault/inbox
}

// ExpandPath expands ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
// Panics if home directory cannot be determined when ~ expansion is needed.
func ExpandPath(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get home directory: %v", err))
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get home directory: %v", err))
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultPaths returns the default XDG-compliant paths.
// Panics if the user's home directory cannot be determined.
func DefaultPaths() Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("failed to get home directory: %v", err))
	}
	configDir := filepath.Join(home, ".config", "aegisvault")
	dataDir := filepath.Join(home, ".local", "share", "aegisvault")

	return Paths{
		ConfigDir:     configDir,
		DataDir:       dataDir,
		KeystorePath:  filepath.Join(dataDir, "keystore.enc"),
		RegistryPath:  filepath.Join(dataDir, "guardians.json"),
		NullifierPath: filepath.Join(dataDir, "nullifiers.bin"),
		InboxDir:      filepath.Join(dataDir, "inbox"),
	}
}

// EnsureDirectories creates config, data, and inbox directories if they
// don't exist.
func (p Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.ConfigDir, 0700); err != nil {
		return err
	}
	if err := os.MkdirAll(p.DataDir, 0700); err != nil {
		return err
	}
	if p.InboxDir == "" {
		return nil
	}
	return os.MkdirAll(p.InboxDir, 0700)
}

// CLIConfig holds configuration for aegis-cli.
type CLIConfig struct {
	Keystore KeystoreConfig `toml:"keystore"`
	Registry RegistryConfig `toml:"registry"`
	Bundles  BundleConfig   `toml:"bundles"`
}

// KeystoreConfig holds the encrypted keystore location.
type KeystoreConfig struct {
	Path string `toml:"path"`
}

// RegistryConfig holds the guardian registry snapshot location.
type RegistryConfig struct {
	SnapshotPath string `toml:"snapshot_path"`
}

// BundleConfig holds where generated proof bundles are written.
type BundleConfig struct {
	OutboxDir string `toml:"outbox_dir"`
}

// KeeperConfig holds configuration for aegis-keeper.
type KeeperConfig struct {
	Registry   RegistryConfig  `toml:"registry"`
	Nullifiers NullifierConfig `toml:"nullifiers"`
	Inbox      InboxConfig     `toml:"inbox"`
	Policy     PolicyConfig    `toml:"policy"`
}

// NullifierConfig holds nullifier persistence settings.
type NullifierConfig struct {
	SnapshotPath            string `toml:"snapshot_path"`
	SnapshotIntervalSeconds int    `toml:"snapshot_interval_seconds"`
}

// InboxConfig holds bundle inbox settings.
type InboxConfig struct {
	Dir       string `toml:"dir"`
	QueueSize int    `toml:"queue_size"`
}

// PolicyConfig holds verification policy parameters.
type PolicyConfig struct {
	RequireFreshProofs   bool `toml:"require_fresh_proofs"`
	MaxFutureSkewSeconds int  `toml:"max_future_skew_seconds"`
	VerifyWorkers        int  `toml:"verify_workers"`
}

// DefaultCLIConfig returns a CLIConfig with sensible defaults.
func DefaultCLIConfig() CLIConfig {
	paths := DefaultPaths()
	return CLIConfig{
		Keystore: KeystoreConfig{
			Path: paths.KeystorePath,
		},
		Registry: RegistryConfig{
			SnapshotPath: paths.RegistryPath,
		},
		Bundles: BundleConfig{
			OutboxDir: paths.InboxDir,
		},
	}
}

// DefaultKeeperConfig returns a KeeperConfig with sensible defaults.
func DefaultKeeperConfig() KeeperConfig {
	paths := DefaultPaths()
	return KeeperConfig{
		Registry: RegistryConfig{
			SnapshotPath: paths.RegistryPath,
		},
		Nullifiers: NullifierConfig{
			SnapshotPath:            paths.NullifierPath,
			SnapshotIntervalSeconds: 300,
		},
		Inbox: InboxConfig{
			Dir:       paths.InboxDir,
			QueueSize: 64,
		},
		Policy: PolicyConfig{
			RequireFreshProofs:   true,
			MaxFutureSkewSeconds: 300,
			VerifyWorkers:        2,
		},
	}
}

// AuthzConfig converts the policy section into an authorization service
// config. The keeper always compiles circuits, so Enabled is true.
func (c KeeperConfig) AuthzConfig() authz.Config {
	return authz.Config{
		Enabled:            true,
		RequireFreshProofs: c.Policy.RequireFreshProofs,
		MaxFutureSkew:      time.Duration(c.Policy.MaxFutureSkewSeconds) * time.Second,
		VerifyWorkers:      c.Policy.VerifyWorkers,
	}
}

// LoadCLIConfig loads a CLIConfig from a TOML file.
// Paths with ~ are expanded to the user's home directory.
func LoadCLIConfig(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultCLIConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	// Expand storage paths
	cfg.Keystore.Path = ExpandPath(cfg.Keystore.Path)
	cfg.Registry.SnapshotPath = ExpandPath(cfg.Registry.SnapshotPath)
	cfg.Bundles.OutboxDir = ExpandPath(cfg.Bundles.OutboxDir)

	return &cfg, nil
}

// LoadKeeperConfig loads a KeeperConfig from a TOML file.
// Paths with ~ are expanded to the user's home directory.
func LoadKeeperConfig(path string) (*KeeperConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultKeeperConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	// Expand storage paths
	cfg.Registry.SnapshotPath = ExpandPath(cfg.Registry.SnapshotPath)
	cfg.Nullifiers.SnapshotPath = ExpandPath(cfg.Nullifiers.SnapshotPath)
	cfg.Inbox.Dir = ExpandPath(cfg.Inbox.Dir)

	return &cfg, nil
}
