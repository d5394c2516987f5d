//go:build darwin

package keystore

import (
	"context"

	keychain "github.com/keybase/go-keychain"

	"github.com/goliatone/go-hostbridge/core"
)

// PlatformBackend returns the macOS Keychain adapter.
func PlatformBackend() (Backend, error) {
	return keychainBackend{}, nil
}

// keychainBackend stores records as generic passwords. Accessibility maps
// onto kSecAttrAccessible; biometry and presence prompts are driven by the
// embedding application's LocalAuthentication session, not by the item.
type keychainBackend struct{}

func (keychainBackend) Name() string {
	return "keychain"
}

func (keychainBackend) Probe(context.Context) error {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService("hostbridge-probe")
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnAttributes(true)
	if _, err := keychain.QueryItem(query); err != nil && err != keychain.ErrorItemNotFound {
		return core.WrapStorageUnavailable(err, "keystore: keychain unreachable")
	}
	return nil
}

func (keychainBackend) Put(_ context.Context, rec Record) error {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(rec.Key.Service)
	item.SetAccount(rec.Key.Account)
	item.SetData(rec.Value)
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychainAccessible(rec.Policy.Accessibility))
	label := rec.Label
	if label == "" {
		label = rec.Key.String()
	}
	item.SetLabel(label)
	if rec.Comment != "" {
		item.SetDescription(rec.Comment)
	}

	switch err := keychain.AddItem(item); err {
	case nil:
		return nil
	case keychain.ErrorDuplicateItem:
		return core.NewDuplicateItem("keystore: record already exists: " + rec.Key.String())
	case keychain.ErrorAuthFailed, keychain.ErrorInteractionNotAllowed:
		return core.WrapAccessDenied(err, "keystore: keychain write denied for "+rec.Key.String())
	default:
		return core.WrapBackendError(err, "keystore: keychain write failed for "+rec.Key.String())
	}
}

func (keychainBackend) Get(_ context.Context, key Key) ([]byte, bool, error) {
	data, err := keychain.GetGenericPassword(key.Service, key.Account, "", "")
	switch err {
	case nil:
		if data == nil {
			return nil, false, nil
		}
		return data, true, nil
	case keychain.ErrorItemNotFound:
		return nil, false, nil
	case keychain.ErrorAuthFailed, keychain.ErrorInteractionNotAllowed:
		return nil, false, core.WrapAccessDenied(err, "keystore: keychain read denied for "+key.String())
	default:
		return nil, false, core.WrapBackendError(err, "keystore: keychain read failed for "+key.String())
	}
}

func (keychainBackend) Delete(_ context.Context, key Key) (bool, error) {
	switch err := keychain.DeleteGenericPasswordItem(key.Service, key.Account); err {
	case nil:
		return true, nil
	case keychain.ErrorItemNotFound:
		return false, nil
	case keychain.ErrorAuthFailed, keychain.ErrorInteractionNotAllowed:
		return false, core.WrapAccessDenied(err, "keystore: keychain delete denied for "+key.String())
	default:
		return false, core.WrapBackendError(err, "keystore: keychain delete failed for "+key.String())
	}
}

func (keychainBackend) List(_ context.Context, service string) ([]Key, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	if service != "" {
		query.SetService(service)
	}
	query.SetMatchLimit(keychain.MatchLimitAll)
	query.SetReturnAttributes(true)

	results, err := keychain.QueryItem(query)
	if err != nil && err != keychain.ErrorItemNotFound {
		return nil, core.WrapBackendError(err, "keystore: keychain list failed")
	}
	keys := make([]Key, 0, len(results))
	for _, result := range results {
		keys = append(keys, Key{Service: result.Service, Account: result.Account})
	}
	return keys, nil
}

func (b keychainBackend) Metadata(ctx context.Context, key Key) (Metadata, bool, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(key.Service)
	query.SetAccount(key.Account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnAttributes(true)

	results, err := keychain.QueryItem(query)
	if err != nil && err != keychain.ErrorItemNotFound {
		return Metadata{}, false, core.WrapBackendError(err, "keystore: keychain metadata query failed for "+key.String())
	}
	if len(results) == 0 {
		return Metadata{}, false, nil
	}
	value, ok, err := b.Get(ctx, key)
	if err != nil {
		return Metadata{}, false, err
	}
	if !ok {
		return Metadata{}, false, nil
	}
	return Metadata{
		Created:  results[0].CreationDate,
		Modified: results[0].ModificationDate,
		Size:     len(value),
	}, true, nil
}

func keychainAccessible(accessibility Accessibility) keychain.Accessible {
	switch accessibility {
	case AccessibilityWhenUnlocked:
		return keychain.AccessibleWhenUnlocked
	case AccessibilityWhenUnlockedDeviceOnly:
		return keychain.AccessibleWhenUnlockedThisDeviceOnly
	case AccessibilityAfterFirstUnlock:
		return keychain.AccessibleAfterFirstUnlock
	case AccessibilityAfterFirstUnlockDeviceOnly:
		return keychain.AccessibleAfterFirstUnlockThisDeviceOnly
	case AccessibilityAlways:
		return keychain.AccessibleAlways
	case AccessibilityAlwaysDeviceOnly:
		return keychain.AccessibleAccessibleAlwaysThisDeviceOnly
	default:
		return keychain.AccessibleWhenUnlockedThisDeviceOnly
	}
}

var _ Backend = keychainBackend{}
