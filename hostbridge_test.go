package hostbridge

import (
	"bytes"
	"context"
	"testing"

	"github.com/goliatone/go-hostbridge/core"
	"github.com/goliatone/go-hostbridge/events"
	"github.com/goliatone/go-hostbridge/handle"
	"github.com/goliatone/go-hostbridge/keystore"
)

// deadBackend stands in for an unreachable platform secret service.
type deadBackend struct{}

func (deadBackend) Name() string { return "dead" }
func (deadBackend) Probe(context.Context) error {
	return core.NewStorageUnavailable("keystore: service down")
}
func (deadBackend) Put(context.Context, keystore.Record) error {
	return core.NewStorageUnavailable("keystore: service down")
}
func (deadBackend) Get(context.Context, keystore.Key) ([]byte, bool, error) {
	return nil, false, core.NewStorageUnavailable("keystore: service down")
}
func (deadBackend) Delete(context.Context, keystore.Key) (bool, error) {
	return false, core.NewStorageUnavailable("keystore: service down")
}
func (deadBackend) List(context.Context, string) ([]keystore.Key, error) {
	return nil, core.NewStorageUnavailable("keystore: service down")
}
func (deadBackend) Metadata(context.Context, keystore.Key) (keystore.Metadata, bool, error) {
	return keystore.Metadata{}, false, core.NewStorageUnavailable("keystore: service down")
}

func newTestBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	ctx := context.Background()
	base := []Option{WithBackend(keystore.NewMemoryBackend())}
	bridge, err := New(ctx, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	t.Cleanup(func() { bridge.Shutdown(ctx) })
	return bridge
}

func TestBridge_KeystoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	bridge := newTestBridge(t)

	key := keystore.Key{Service: "wallet-seed", Account: "user1"}
	seed := make([]byte, 32)
	if err := bridge.Keystore().Store(ctx, key, seed, keystore.HighSecurity()); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, ok, err := bridge.Keystore().Retrieve(ctx, key)
	if err != nil || !ok || !bytes.Equal(got, seed) {
		t.Fatalf("retrieve: %v ok=%v err=%v", got, ok, err)
	}
}

func TestBridge_EventDeliveryThroughFacade(t *testing.T) {
	bridge := newTestBridge(t)

	type wallet struct{ label string }
	table := handle.NewTable[wallet]()
	if err := bridge.Handles().Register("wallet", table); err != nil {
		t.Fatalf("register table: %v", err)
	}
	id := table.Create(wallet{label: "main"})

	received := make(chan events.Payload, 1)
	if _, err := bridge.Events().Register(id, func(event events.Payload) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	bridge.Events().Emit(id, events.TypeBalanceChanged, map[string]any{"balance": 7})
	if err := bridge.Events().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case event := <-received:
		if event.Handle != id || event.Type != events.TypeBalanceChanged {
			t.Fatalf("unexpected event: %+v", event)
		}
	default:
		t.Fatalf("event not delivered after flush")
	}
}

func TestBridge_RuntimeConfigWinsOverLoaded(t *testing.T) {
	loader := core.NewStaticRawConfigLoader(map[string]any{
		"service_name": "from-config",
		"storage": map[string]any{
			"namespace": "cfg-namespace",
		},
	})
	bridge := newTestBridge(t,
		WithConfigProvider(core.NewCfgxConfigProvider(loader)),
		WithRuntimeConfig(core.Config{ServiceName: "walletd"}),
	)

	cfg := bridge.Config()
	if cfg.ServiceName != "walletd" {
		t.Fatalf("runtime override lost: %q", cfg.ServiceName)
	}
	if cfg.Storage.Namespace != "cfg-namespace" {
		t.Fatalf("loaded config lost: %q", cfg.Storage.Namespace)
	}
	if cfg.Events.QueueCapacity != core.DefaultConfig().Events.QueueCapacity {
		t.Fatalf("defaults lost: %+v", cfg.Events)
	}
}

func TestBridge_FallbackEngagedWhenPrimaryDead(t *testing.T) {
	ctx := context.Background()
	var diagnostics []keystore.Diagnostic
	bridge := newTestBridge(t,
		WithBackend(deadBackend{}),
		WithFallbackBackend(keystore.NewMemoryBackend()),
		WithStorageDiagnostics(func(event keystore.Diagnostic) {
			diagnostics = append(diagnostics, event)
		}),
	)

	key := keystore.Key{Service: "vault", Account: "rescued"}
	if err := bridge.Keystore().Store(ctx, key, []byte("v"), keystore.StandardSecurity()); err != nil {
		t.Fatalf("store via fallback: %v", err)
	}
	engaged := false
	for _, event := range diagnostics {
		if event.Outcome == "fallback_engaged" {
			engaged = true
		}
	}
	if !engaged {
		t.Fatalf("expected fallback_engaged diagnostic, got %+v", diagnostics)
	}
}

func TestBridge_StatusReflectsSubsystems(t *testing.T) {
	ctx := context.Background()
	bridge := newTestBridge(t)

	table := handle.NewTable[string]()
	if err := bridge.Handles().Register("session", table); err != nil {
		t.Fatalf("register table: %v", err)
	}
	table.Create("s1")
	table.Create("s2")

	status := bridge.Status(ctx)
	if status.Service != "hostbridge" {
		t.Fatalf("unexpected service name: %q", status.Service)
	}
	if !status.Storage.Available || status.Degraded {
		t.Fatalf("memory backend should be healthy: %+v", status)
	}
	if status.Handles["session"] != 2 {
		t.Fatalf("handle counts wrong: %+v", status.Handles)
	}
}

func TestBridge_ShutdownDropsHandlesAndStopsEvents(t *testing.T) {
	ctx := context.Background()
	bridge, err := New(ctx, WithBackend(keystore.NewMemoryBackend()))
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	table := handle.NewTable[int]()
	if err := bridge.Handles().Register("wallet", table); err != nil {
		t.Fatalf("register table: %v", err)
	}
	id := table.Create(1)

	bridge.Shutdown(ctx)
	bridge.Shutdown(ctx) // idempotent

	if table.Contains(id) {
		t.Fatalf("handles must be dropped at shutdown")
	}
	if _, err := bridge.Events().Register(id, func(events.Payload) error { return nil }); err == nil {
		t.Fatalf("event registration must fail after shutdown")
	}
}
