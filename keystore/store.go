package keystore

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-hostbridge/core"
)

// Diagnostic describes one backend selection or failure transition. Hooks
// receive it synchronously; keep them cheap.
type Diagnostic struct {
	OccurredAt time.Time
	Operation  string
	Primary    string
	Fallback   string
	Outcome    string
	Error      string
}

type DiagnosticHook func(event Diagnostic)

type Option func(*Store)

// Store is the secure-storage facade. It selects primary or fallback backend
// by probing, enforces replace semantics on writes, and maps backend failures
// into the shared error taxonomy. All operations accept a context because
// backends may block on OS IPC; the store itself applies no timeouts.
type Store struct {
	primary  Backend
	fallback Backend
	logger   core.Logger
	hook     DiagnosticHook
	now      func() time.Time

	mu     sync.Mutex
	active Backend
}

func New(primary Backend, opts ...Option) (*Store, error) {
	if primary == nil {
		return nil, core.NewBadInput("keystore: primary backend is required")
	}
	store := &Store{
		primary: primary,
		now:     core.SystemClock,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func WithFallback(backend Backend) Option {
	return func(s *Store) {
		s.fallback = backend
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithDiagnostics(hook DiagnosticHook) Option {
	return func(s *Store) {
		s.hook = hook
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// resolve picks the serving backend: primary if its probe passes, otherwise
// the fallback. The choice is cached once a probe succeeds; an unresolved
// store re-probes on every call so a recovered service is picked up.
func (s *Store) resolve(ctx context.Context, operation string) (Backend, error) {
	s.mu.Lock()
	if s.active != nil {
		backend := s.active
		s.mu.Unlock()
		return backend, nil
	}
	s.mu.Unlock()

	primaryErr := s.primary.Probe(ctx)
	if primaryErr == nil {
		s.activate(s.primary)
		return s.primary, nil
	}
	s.emit(operation, "primary_unreachable", primaryErr)

	if s.fallback == nil {
		return nil, core.WrapStorageUnavailable(primaryErr, "keystore: secret service unreachable and no fallback configured")
	}
	if fallbackErr := s.fallback.Probe(ctx); fallbackErr != nil {
		s.emit(operation, "fallback_unreachable", fallbackErr)
		return nil, core.WrapStorageUnavailable(fallbackErr, "keystore: secret service unreachable and fallback probe failed")
	}
	s.emit(operation, "fallback_engaged", primaryErr)
	core.LogInfo(ctx, s.logger, "keystore fallback engaged", map[string]any{
		"primary":  s.primary.Name(),
		"fallback": s.fallback.Name(),
		"cause":    primaryErr.Error(),
	})
	s.activate(s.fallback)
	return s.fallback, nil
}

func (s *Store) activate(backend Backend) {
	s.mu.Lock()
	s.active = backend
	s.mu.Unlock()
}

// Store writes value under key with the given policy. Writing over an
// existing key deletes the prior entry first so a stale access policy cannot
// linger under the old record.
func (s *Store) Store(ctx context.Context, key Key, value []byte, policy AccessPolicy) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	backend, err := s.resolve(ctx, "store")
	if err != nil {
		return err
	}
	if _, err := backend.Delete(ctx, key); err != nil {
		// Keep the backend's classification (access denied, storage
		// unavailable) visible to callers; only tag unclassified failures.
		if core.TextCode(err) != "" {
			return err
		}
		return core.WrapBackendError(err, "keystore: replace delete failed for "+key.String())
	}
	if err := backend.Put(ctx, Record{Key: key, Value: value, Policy: policy}); err != nil {
		return err
	}
	core.LogInfo(ctx, s.logger, "secret stored", map[string]any{
		"key":     key.String(),
		"backend": backend.Name(),
		"policy":  policy.Describe(),
		"size":    len(value),
	})
	return nil
}

// Retrieve returns the stored value. Absence is (nil, false, nil), not an
// error; only operational failures are errors.
func (s *Store) Retrieve(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	backend, err := s.resolve(ctx, "retrieve")
	if err != nil {
		return nil, false, err
	}
	return backend.Get(ctx, key)
}

// Remove deletes the record. Removing an absent key is a NotFound error;
// remove is a write-style operation, unlike Retrieve and Exists.
func (s *Store) Remove(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	backend, err := s.resolve(ctx, "remove")
	if err != nil {
		return err
	}
	removed, err := backend.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !removed {
		return core.NewNotFound("keystore: no record for " + key.String())
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	backend, err := s.resolve(ctx, "exists")
	if err != nil {
		return false, err
	}
	_, ok, err := backend.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// List returns every key in the namespace in deterministic order. An empty
// service lists all services the backend can see.
func (s *Store) List(ctx context.Context, service string) ([]Key, error) {
	backend, err := s.resolve(ctx, "list")
	if err != nil {
		return nil, err
	}
	return backend.List(ctx, service)
}

func (s *Store) Clear(ctx context.Context, service string) error {
	backend, err := s.resolve(ctx, "clear")
	if err != nil {
		return err
	}
	keys, err := backend.List(ctx, service)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := backend.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, key Key) (Metadata, error) {
	if err := key.Validate(); err != nil {
		return Metadata{}, err
	}
	backend, err := s.resolve(ctx, "metadata")
	if err != nil {
		return Metadata{}, err
	}
	meta, ok, err := backend.Metadata(ctx, key)
	if err != nil {
		return Metadata{}, err
	}
	if !ok {
		return Metadata{}, core.NewNotFound("keystore: no record for " + key.String())
	}
	return meta, nil
}

func (s *Store) Info(ctx context.Context) (Info, error) {
	backend, err := s.resolve(ctx, "info")
	if err != nil {
		name := s.primary.Name()
		return Info{Backend: name, Available: false}, err
	}
	keys, err := backend.List(ctx, "")
	if err != nil {
		return Info{Backend: backend.Name(), Available: false}, err
	}
	return Info{Backend: backend.Name(), Available: true, ItemCount: len(keys)}, nil
}

// Test round-trips a throwaway record to verify the serving backend works.
// It cleans up after itself even when the round trip fails, so List is
// unchanged before and after.
func (s *Store) Test(ctx context.Context) error {
	backend, err := s.resolve(ctx, "test")
	if err != nil {
		return err
	}
	key := Key{
		Service: "hostbridge-selftest",
		Account: uuid.NewString(),
	}
	probe := []byte("hostbridge-selftest:" + key.Account)
	defer core.Zeroize(probe)
	defer backend.Delete(ctx, key)

	if err := backend.Put(ctx, Record{Key: key, Value: probe, Policy: LowSecurity()}); err != nil {
		return core.WrapBackendError(err, "keystore: self-test write failed")
	}
	value, ok, err := backend.Get(ctx, key)
	if err != nil {
		return core.WrapBackendError(err, "keystore: self-test read failed")
	}
	defer core.Zeroize(value)
	if !ok || !bytes.Equal(value, probe) {
		return core.NewBackendError("keystore: self-test read returned wrong value")
	}
	if _, err := backend.Delete(ctx, key); err != nil {
		return core.WrapBackendError(err, "keystore: self-test cleanup failed")
	}
	return nil
}

func (s *Store) emit(operation string, outcome string, err error) {
	if s.hook == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	fallbackName := ""
	if s.fallback != nil {
		fallbackName = s.fallback.Name()
	}
	s.hook(Diagnostic{
		OccurredAt: s.now(),
		Operation:  operation,
		Primary:    s.primary.Name(),
		Fallback:   fallbackName,
		Outcome:    outcome,
		Error:      msg,
	})
}
