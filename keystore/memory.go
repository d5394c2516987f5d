package keystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-hostbridge/core"
)

// MemoryBackend keeps records in process memory. It backs tests and embedders
// that manage persistence themselves; nothing survives the process.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[Key]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	value    []byte
	label    string
	comment  string
	policy   AccessPolicy
	created  time.Time
	modified time.Time
}

type MemoryOption func(*MemoryBackend)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		if now != nil {
			b.now = now
		}
	}
}

func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	backend := &MemoryBackend{
		records: make(map[Key]memoryRecord),
		now:     core.SystemClock,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(backend)
	}
	return backend
}

func (b *MemoryBackend) Name() string {
	return "memory"
}

func (b *MemoryBackend) Probe(context.Context) error {
	return nil
}

func (b *MemoryBackend) Put(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.records[rec.Key]; exists {
		return core.NewDuplicateItem("keystore: record already exists: " + rec.Key.String())
	}
	now := b.now()
	b.records[rec.Key] = memoryRecord{
		value:    append([]byte(nil), rec.Value...),
		label:    rec.Label,
		comment:  rec.Comment,
		policy:   rec.Policy,
		created:  now,
		modified: now,
	}
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, key Key) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), rec.value...), true, nil
}

func (b *MemoryBackend) Delete(_ context.Context, key Key) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[key]; !ok {
		return false, nil
	}
	delete(b.records, key)
	return true, nil
}

func (b *MemoryBackend) List(_ context.Context, service string) ([]Key, error) {
	b.mu.Lock()
	keys := make([]Key, 0, len(b.records))
	for key := range b.records {
		if service != "" && key.Service != service {
			continue
		}
		keys = append(keys, key)
	}
	b.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Service != keys[j].Service {
			return keys[i].Service < keys[j].Service
		}
		return keys[i].Account < keys[j].Account
	})
	return keys, nil
}

func (b *MemoryBackend) Metadata(_ context.Context, key Key) (Metadata, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return Metadata{}, false, nil
	}
	return Metadata{
		Created:  rec.created,
		Modified: rec.modified,
		Size:     len(rec.value),
	}, true, nil
}

// Policy exposes the stored policy for a key so tests can assert replace
// semantics end to end.
func (b *MemoryBackend) Policy(key Key) (AccessPolicy, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return AccessPolicy{}, false
	}
	return rec.policy, true
}

var _ Backend = (*MemoryBackend)(nil)
