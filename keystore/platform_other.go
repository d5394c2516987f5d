//go:build !darwin && !linux && !windows

package keystore

import (
	"context"
	"runtime"

	"github.com/goliatone/go-hostbridge/core"
)

// PlatformBackend has no native secret store on this platform; every probe
// reports the well-defined storage-unavailable condition so the facade can
// engage the fallback or fail loudly. It never degrades to plaintext.
func PlatformBackend() (Backend, error) {
	return unsupportedBackend{goos: runtime.GOOS}, nil
}

type unsupportedBackend struct {
	goos string
}

func (b unsupportedBackend) Name() string {
	return "unsupported"
}

func (b unsupportedBackend) err() error {
	return core.NewStorageUnavailable("keystore: no native secret store on " + b.goos)
}

func (b unsupportedBackend) Probe(context.Context) error {
	return b.err()
}

func (b unsupportedBackend) Put(context.Context, Record) error {
	return b.err()
}

func (b unsupportedBackend) Get(context.Context, Key) ([]byte, bool, error) {
	return nil, false, b.err()
}

func (b unsupportedBackend) Delete(context.Context, Key) (bool, error) {
	return false, b.err()
}

func (b unsupportedBackend) List(context.Context, string) ([]Key, error) {
	return nil, b.err()
}

func (b unsupportedBackend) Metadata(context.Context, Key) (Metadata, bool, error) {
	return Metadata{}, false, b.err()
}

var _ Backend = unsupportedBackend{}
