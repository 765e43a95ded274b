package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/aegisvault/aegisvault/internal/authz"
	"github.com/aegisvault/aegisvault/internal/config"
	"github.com/aegisvault/aegisvault/internal/inbox"
	"github.com/aegisvault/aegisvault/internal/nullifier"
	"github.com/aegisvault/aegisvault/internal/registry"
	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// Inbox subdirectories bundles are moved into after processing.
const (
	acceptedDir = "accepted"
	rejectedDir = "rejected"
)

// DaemonConfig holds configuration for the keeper daemon.
type DaemonConfig struct {
	RegistryPath     string
	NullifierPath    string
	InboxDir         string
	QueueSize        int
	SnapshotInterval time.Duration
	Authz            authz.Config
}

// Validate checks that all required configuration fields are set.
func (c *DaemonConfig) Validate() error {
	if c.RegistryPath == "" {
		return errors.New("registry path is required")
	}
	if c.NullifierPath == "" {
		return errors.New("nullifier snapshot path is required")
	}
	if c.InboxDir == "" {
		return errors.New("inbox directory is required")
	}
	// Defaults if not set
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 5 * time.Minute
	}
	return c.Authz.Validate()
}

// DefaultDaemonConfig returns a DaemonConfig with sensible defaults.
func DefaultDaemonConfig() DaemonConfig {
	keeper := config.DefaultKeeperConfig()
	return DaemonConfig{
		RegistryPath:     keeper.Registry.SnapshotPath,
		NullifierPath:    keeper.Nullifiers.SnapshotPath,
		InboxDir:         keeper.Inbox.Dir,
		QueueSize:        keeper.Inbox.QueueSize,
		SnapshotInterval: time.Duration(keeper.Nullifiers.SnapshotIntervalSeconds) * time.Second,
		Authz:            keeper.AuthzConfig(),
	}
}

// Daemon is the keeper daemon. It watches the inbox for proof bundles,
// verifies each one through the full pipeline, and sorts them into the
// accepted/ and rejected/ subdirectories.
type Daemon struct {
	cfg      DaemonConfig
	registry *registry.Registry
	store    *nullifier.Store
	service  *authz.Service
	watcher  *inbox.Watcher
	logger   *slog.Logger

	// Event channel
	events chan inbox.BundleEvent

	accepted atomic.Int64
	rejected atomic.Int64
}

// NewDaemon creates a new keeper daemon.
// If reg or store are nil they are loaded from the configured paths.
func NewDaemon(cfg DaemonConfig, reg *registry.Registry, store *nullifier.Store) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()

	if reg == nil {
		var err error
		reg, err = registry.Load(cfg.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load guardian registry: %w", err)
		}
		root, version := reg.Root()
		logger.Info("loaded guardian registry",
			"path", cfg.RegistryPath,
			"version", version,
			"guardians", reg.Size(),
			"root", root.String(),
		)
	}

	if store == nil {
		var err error
		store, err = nullifier.Load(cfg.NullifierPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load nullifier snapshot: %w", err)
		}
		logger.Info("loaded nullifier store",
			"path", cfg.NullifierPath,
			"spent", store.Size(),
		)
	}

	if cfg.Authz.Enabled {
		logger.Info("compiling proof circuits")
	}
	start := time.Now()
	service, err := authz.NewService(cfg.Authz, reg, store)
	if err != nil {
		return nil, fmt.Errorf("failed to build verification service: %w", err)
	}
	if cfg.Authz.Enabled {
		logger.Info("proof circuits ready", "elapsed", time.Since(start).String())
	}

	return &Daemon{
		cfg:      cfg,
		registry: reg,
		store:    store,
		service:  service,
		logger:   logger,
		events:   make(chan inbox.BundleEvent, cfg.QueueSize),
	}, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	for _, dir := range []string{d.cfg.InboxDir, d.acceptedPath(), d.rejectedPath()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	watcher, err := inbox.NewWatcher(d.cfg.InboxDir, d.events)
	if err != nil {
		return err
	}
	d.watcher = watcher
	watcher.SetErrorCallback(func(err error) {
		d.logger.Error("inbox watcher error", "error", err)
	})

	// Hot-reload the registry on republish.
	go func() {
		if err := d.registry.Watch(ctx, d.logger); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("registry watch stopped", "error", err)
		}
	}()

	// Bundles that arrived while the keeper was down.
	pending, err := watcher.Pending()
	if err != nil {
		return err
	}
	for _, path := range pending {
		d.processBundle(path)
	}
	if len(pending) > 0 {
		d.logger.Info("drained pending bundles", "count", len(pending))
	}

	// Start inbox watcher
	go func() {
		d.logger.Info("watching inbox", "dir", d.cfg.InboxDir)
		watcher.Start(ctx)
	}()

	// Start event processor and snapshot timer
	go d.processEvents(ctx)
	go d.snapshotLoop(ctx)

	<-ctx.Done()
	d.logger.Info("shutting down daemon")
	return d.shutdown()
}

// processEvents handles bundle events from the inbox watcher.
func (d *Daemon) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.events:
			if !ok {
				return
			}
			d.processBundle(event.Path)
		}
	}
}

// processBundle verifies one bundle file and moves it to accepted/ or
// rejected/.
func (d *Daemon) processBundle(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// A second event for a bundle that was already moved.
		if os.IsNotExist(err) {
			return
		}
		d.logger.Warn("failed to read bundle", "path", path, "error", err)
		return
	}

	bundle, err := authz.DecodeBundle(data)
	if err != nil {
		d.logger.Warn("malformed bundle", "path", path, "error", err)
		d.moveBundle(path, d.rejectedPath())
		d.rejected.Add(1)
		return
	}

	if err := d.service.VerifyBundle(bundle); err != nil {
		d.logger.Warn("bundle rejected",
			"id", bundle.ID,
			"kind", string(bundle.Kind),
			"reason", err.Error(),
		)
		d.moveBundle(path, d.rejectedPath())
		d.rejected.Add(1)
		return
	}

	d.logger.Info("bundle accepted", "id", bundle.ID, "kind", string(bundle.Kind))
	d.moveBundle(path, d.acceptedPath())
	d.accepted.Add(1)

	// An accepted identity bundle spends a nullifier; persist right away so
	// a crash cannot forget it.
	if bundle.Kind == zkproof.KindIdentity {
		if err := d.store.Save(d.cfg.NullifierPath); err != nil {
			d.logger.Error("failed to save nullifier snapshot", "error", err)
		}
	}
}

// moveBundle relocates a processed bundle file.
func (d *Daemon) moveBundle(path, destDir string) {
	dest := filepath.Join(destDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		d.logger.Error("failed to move bundle", "from", path, "to", dest, "error", err)
	}
}

// snapshotLoop persists the nullifier store on a timer.
func (d *Daemon) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.store.Save(d.cfg.NullifierPath); err != nil {
				d.logger.Error("failed to save nullifier snapshot", "error", err)
			}
		}
	}
}

// shutdown stops the watcher and persists the nullifier store.
func (d *Daemon) shutdown() error {
	var errs []error

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.store.Save(d.cfg.NullifierPath); err != nil {
		errs = append(errs, err)
	}

	d.logger.Info("bundle totals",
		"accepted", d.accepted.Load(),
		"rejected", d.rejected.Load(),
		"nullifiers", d.store.Size(),
	)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Totals returns how many bundles this daemon has accepted and rejected.
func (d *Daemon) Totals() (accepted, rejected int64) {
	return d.accepted.Load(), d.rejected.Load()
}

func (d *Daemon) acceptedPath() string {
	return filepath.Join(d.cfg.InboxDir, acceptedDir)
}

func (d *Daemon) rejectedPath() string {
	return filepath.Join(d.cfg.InboxDir, rejectedDir)
}
