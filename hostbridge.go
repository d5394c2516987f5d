// Package hostbridge assembles the native-side substrate an embedding host
// application talks to: handle tables for resource identity, the secure
// keystore facade, and the event bridge. The package wires configuration,
// logging, and backend selection; the subsystems stay usable on their own.
package hostbridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-hostbridge/core"
	"github.com/goliatone/go-hostbridge/events"
	"github.com/goliatone/go-hostbridge/handle"
	"github.com/goliatone/go-hostbridge/keystore"
)

// Bridge owns one instance of each subsystem. Hosts usually keep a single
// Bridge for the process lifetime and tear it down with Shutdown.
type Bridge struct {
	config   core.Config
	logger   core.Logger
	now      func() time.Time
	handles  *handle.Registry
	keystore *keystore.Store
	events   *events.Bridge
}

type builder struct {
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	runtime         core.Config
	clock           func() time.Time
	primary         keystore.Backend
	fallback        keystore.Backend
	fallbackKey     []byte
	storageHook     keystore.DiagnosticHook
}

type Option func(*builder)

func WithLogger(logger core.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *builder) {
		b.loggerProvider = provider
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *builder) {
		if provider != nil {
			b.configProvider = provider
		}
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *builder) {
		if resolver != nil {
			b.optionsResolver = resolver
		}
	}
}

// WithRuntimeConfig supplies programmatic overrides. They win over loaded
// configuration, which wins over defaults.
func WithRuntimeConfig(cfg core.Config) Option {
	return func(b *builder) {
		b.runtime = cfg
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *builder) {
		if now != nil {
			b.clock = now
		}
	}
}

// WithBackend replaces the platform secret store, mainly for tests and for
// hosts that bring their own keyring integration.
func WithBackend(backend keystore.Backend) Option {
	return func(b *builder) {
		b.primary = backend
	}
}

func WithFallbackBackend(backend keystore.Backend) Option {
	return func(b *builder) {
		b.fallback = backend
	}
}

// WithFallbackKeyMaterial supplies the secret used to derive the encrypted
// keyring file's key. Without it the file fallback reports itself
// unavailable; it never stores plaintext.
func WithFallbackKeyMaterial(material []byte) Option {
	return func(b *builder) {
		b.fallbackKey = material
	}
}

func WithStorageDiagnostics(hook keystore.DiagnosticHook) Option {
	return func(b *builder) {
		b.storageHook = hook
	}
}

// New resolves configuration, selects storage backends, and starts the event
// dispatcher. The returned bridge is ready for use; callers own Shutdown.
func New(ctx context.Context, opts ...Option) (*Bridge, error) {
	b := builder{
		configProvider:  core.NewCfgxConfigProvider(nil),
		optionsResolver: core.GoOptionsResolver{},
		clock:           core.SystemClock,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&b)
	}

	provider, logger := glog.Resolve("hostbridge", b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("hostbridge"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	defaults := core.DefaultConfig()
	loaded, err := b.configProvider.Load(ctx, defaults)
	if err != nil {
		return nil, fmt.Errorf("hostbridge: config load failed: %w", err)
	}
	cfg, err := b.optionsResolver.Resolve(defaults, loaded, b.runtime)
	if err != nil {
		return nil, fmt.Errorf("hostbridge: config resolve failed: %w", err)
	}

	primary := b.primary
	if primary == nil {
		primary, err = keystore.PlatformBackend()
		if err != nil {
			return nil, fmt.Errorf("hostbridge: platform backend init failed: %w", err)
		}
	}
	fallback := b.fallback
	if fallback == nil && cfg.Storage.FallbackEnabled {
		fallback, err = fileFallback(cfg, b.fallbackKey, b.clock)
		if err != nil {
			return nil, err
		}
	}

	storeOpts := []keystore.Option{
		keystore.WithLogger(logger),
		keystore.WithClock(b.clock),
	}
	if fallback != nil {
		storeOpts = append(storeOpts, keystore.WithFallback(fallback))
	}
	if b.storageHook != nil {
		storeOpts = append(storeOpts, keystore.WithDiagnostics(b.storageHook))
	}
	store, err := keystore.New(primary, storeOpts...)
	if err != nil {
		return nil, err
	}

	dispatcher := events.New(
		events.WithLogger(logger),
		events.WithClock(b.clock),
		events.WithQueueCapacity(cfg.Events.QueueCapacity),
	)

	bridge := &Bridge{
		config:   cfg,
		logger:   logger,
		now:      b.clock,
		handles:  handle.NewRegistry(),
		keystore: store,
		events:   dispatcher,
	}
	core.LogInfo(ctx, logger, "hostbridge ready", map[string]any{
		"service":          cfg.ServiceName,
		"namespace":        cfg.Storage.Namespace,
		"primary_backend":  primary.Name(),
		"fallback_enabled": fallback != nil,
	})
	return bridge, nil
}

// fileFallback places the encrypted keyring under the user config dir when no
// explicit path is configured.
func fileFallback(cfg core.Config, keyMaterial []byte, now func() time.Time) (keystore.Backend, error) {
	path := strings.TrimSpace(cfg.Storage.FallbackPath)
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("hostbridge: no fallback path and no user config dir: %w", err)
		}
		path = filepath.Join(base, cfg.ServiceName, "keyring.json")
	}
	return keystore.NewFileBackend(path, keyMaterial, keystore.WithFileClock(now))
}

// Config returns the resolved configuration the bridge runs with.
func (b *Bridge) Config() core.Config {
	return b.config
}

func (b *Bridge) Logger() core.Logger {
	return b.logger
}

// Handles is the per-bridge registry of handle tables. Resource kinds
// register their tables here so Shutdown and diagnostics can see them.
func (b *Bridge) Handles() *handle.Registry {
	return b.handles
}

// Keystore is the secure-storage facade.
func (b *Bridge) Keystore() *keystore.Store {
	return b.keystore
}

// Events is the callback dispatcher.
func (b *Bridge) Events() *events.Bridge {
	return b.events
}

// Status aggregates subsystem health for host-side diagnostics.
type Status struct {
	Service  string
	Storage  keystore.Info
	Events   events.Stats
	Handles  map[string]int
	Checked  time.Time
	Degraded bool
}

func (b *Bridge) Status(ctx context.Context) Status {
	status := Status{
		Service: b.config.ServiceName,
		Events:  b.events.Stats(),
		Handles: b.handles.Counts(),
		Checked: b.now(),
	}
	info, err := b.keystore.Info(ctx)
	status.Storage = info
	status.Degraded = err != nil || !info.Available
	return status
}

// Shutdown stops the event dispatcher and drops every live handle. It is
// idempotent. Secrets stay in their backing store; only in-process state is
// released.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.events.Shutdown()
	dropped := b.handles.Reset()
	core.LogInfo(ctx, b.logger, "hostbridge shut down", map[string]any{
		"handles_dropped": dropped,
	})
}
