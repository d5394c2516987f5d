package keystore

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-hostbridge/core"
)

// Key identifies one record. The (service, account) pair is unique within a
// backend's namespace.
type Key struct {
	Service string
	Account string
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.Service) == "" {
		return core.NewBadInput("keystore: key service is required")
	}
	if strings.TrimSpace(k.Account) == "" {
		return core.NewBadInput("keystore: key account is required")
	}
	return nil
}

func (k Key) String() string {
	return k.Service + "/" + k.Account
}

// id is the joined form used where a backend needs a single string identity.
// Both fields are path-escaped so a slash inside either field cannot collide
// with the separator: (a, b/c) and (a/b, c) stay distinct records.
func (k Key) id() string {
	return url.PathEscape(k.Service) + "/" + url.PathEscape(k.Account)
}

// Record is the logical secret entry handed to a backend. Value ownership
// transfers to the backend for the duration of the call; backends copy what
// they keep.
type Record struct {
	Key     Key
	Value   []byte
	Label   string
	Comment string
	Policy  AccessPolicy
}

type Metadata struct {
	Created  time.Time
	Modified time.Time
	Size     int
}

type Info struct {
	Backend   string
	Available bool
	ItemCount int
}

// Backend adapts one secret store. Implementations are the only code in the
// module that touches raw platform APIs.
//
// Error contract: Put on an existing key returns a DuplicateItem error; Get,
// Delete, and Metadata report absence through their boolean, reserving errors
// for operational failures (service unreachable, permission denied).
type Backend interface {
	Name() string
	Probe(ctx context.Context) error
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Delete(ctx context.Context, key Key) (bool, error)
	List(ctx context.Context, service string) ([]Key, error)
	Metadata(ctx context.Context, key Key) (Metadata, bool, error)
}
