//go:build windows

package keystore

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/billgraziano/dpapi"
	"github.com/danieljoos/wincred"

	"github.com/goliatone/go-hostbridge/core"
)

// PlatformBackend returns the Windows Credential Manager adapter. Payloads
// are wrapped with user-scoped DPAPI before they reach the credential store,
// which does not itself encrypt blobs at rest.
func PlatformBackend() (Backend, error) {
	return wincredBackend{}, nil
}

type wincredBackend struct{}

func (wincredBackend) Name() string {
	return "credential-store"
}

// credentialTarget is the escaped (service, account) identity; a slash
// inside either field cannot collide with the separator.
func credentialTarget(key Key) string {
	return key.id()
}

func credentialKey(target string) (Key, bool) {
	parts := strings.SplitN(target, "/", 2)
	if len(parts) != 2 {
		return Key{}, false
	}
	service, err := url.PathUnescape(parts[0])
	if err != nil {
		return Key{}, false
	}
	account, err := url.PathUnescape(parts[1])
	if err != nil {
		return Key{}, false
	}
	if service == "" || account == "" {
		return Key{}, false
	}
	return Key{Service: service, Account: account}, true
}

func (wincredBackend) Probe(context.Context) error {
	if _, err := wincred.List(); err != nil {
		return core.WrapStorageUnavailable(err, "keystore: credential store unreachable")
	}
	return nil
}

func (wincredBackend) Put(_ context.Context, rec Record) error {
	target := credentialTarget(rec.Key)
	if _, err := wincred.GetGenericCredential(target); err == nil {
		return core.NewDuplicateItem("keystore: record already exists: " + rec.Key.String())
	} else if !errors.Is(err, wincred.ErrElementNotFound) {
		return core.WrapBackendError(err, "keystore: credential lookup failed for "+rec.Key.String())
	}

	wrapped, err := dpapi.EncryptBytes(rec.Value)
	if err != nil {
		return core.WrapBackendError(err, "keystore: dpapi wrap failed for "+rec.Key.String())
	}
	cred := wincred.NewGenericCredential(target)
	cred.CredentialBlob = wrapped
	cred.UserName = rec.Key.Account
	cred.Comment = rec.Comment
	cred.Persist = wincred.PersistLocalMachine
	if err := cred.Write(); err != nil {
		return core.WrapBackendError(err, "keystore: credential write failed for "+rec.Key.String())
	}
	return nil
}

func (wincredBackend) Get(_ context.Context, key Key) ([]byte, bool, error) {
	cred, err := wincred.GetGenericCredential(credentialTarget(key))
	if err != nil {
		if errors.Is(err, wincred.ErrElementNotFound) {
			return nil, false, nil
		}
		return nil, false, core.WrapBackendError(err, "keystore: credential read failed for "+key.String())
	}
	value, err := dpapi.DecryptBytes(cred.CredentialBlob)
	if err != nil {
		return nil, false, core.WrapAccessDenied(err, "keystore: dpapi unwrap failed for "+key.String())
	}
	return value, true, nil
}

func (wincredBackend) Delete(_ context.Context, key Key) (bool, error) {
	cred, err := wincred.GetGenericCredential(credentialTarget(key))
	if err != nil {
		if errors.Is(err, wincred.ErrElementNotFound) {
			return false, nil
		}
		return false, core.WrapBackendError(err, "keystore: credential lookup failed for "+key.String())
	}
	if err := cred.Delete(); err != nil {
		return false, core.WrapBackendError(err, "keystore: credential delete failed for "+key.String())
	}
	return true, nil
}

func (wincredBackend) List(_ context.Context, service string) ([]Key, error) {
	creds, err := wincred.List()
	if err != nil {
		return nil, core.WrapBackendError(err, "keystore: credential list failed")
	}
	keys := make([]Key, 0, len(creds))
	for _, cred := range creds {
		key, ok := credentialKey(cred.TargetName)
		if !ok {
			continue
		}
		if service != "" && key.Service != service {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b wincredBackend) Metadata(ctx context.Context, key Key) (Metadata, bool, error) {
	cred, err := wincred.GetGenericCredential(credentialTarget(key))
	if err != nil {
		if errors.Is(err, wincred.ErrElementNotFound) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, core.WrapBackendError(err, "keystore: credential metadata failed for "+key.String())
	}
	value, err := dpapi.DecryptBytes(cred.CredentialBlob)
	if err != nil {
		return Metadata{}, false, core.WrapAccessDenied(err, "keystore: dpapi unwrap failed for "+key.String())
	}
	// The credential store only tracks the last write.
	return Metadata{
		Created:  cred.LastWritten,
		Modified: cred.LastWritten,
		Size:     len(value),
	}, true, nil
}

var _ Backend = wincredBackend{}
