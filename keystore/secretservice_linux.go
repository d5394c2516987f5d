//go:build linux

package keystore

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/goliatone/go-hostbridge/core"
)

const (
	secretsBusName    = "org.freedesktop.secrets"
	secretsObjectPath = dbus.ObjectPath("/org/freedesktop/secrets")
	defaultCollection = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
	serviceInterface  = "org.freedesktop.Secret.Service"
	collectionIface   = "org.freedesktop.Secret.Collection"
	itemInterface     = "org.freedesktop.Secret.Item"
	promptInterface   = "org.freedesktop.Secret.Prompt"
	noPrompt          = dbus.ObjectPath("/")
	secretContentType = "application/octet-stream"
	attributeService  = "service"
	attributeAccount  = "account"
)

func unixSeconds(epoch uint64) time.Time {
	return time.Unix(int64(epoch), 0).UTC()
}

// PlatformBackend returns the freedesktop Secret Service adapter, talking to
// the keyring daemon over the desktop session bus. The daemon owns unlock
// state; the record's access policy does not map onto Secret Service
// concepts and is carried at the facade level only.
func PlatformBackend() (Backend, error) {
	return &secretServiceBackend{}, nil
}

type secretServiceBackend struct{}

func (b *secretServiceBackend) Name() string {
	return "secret-service"
}

// dbusSecret matches the wire shape of org.freedesktop.Secret.Service's
// Secret struct for the plain session algorithm.
type dbusSecret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

type secretSession struct {
	conn *dbus.Conn
	svc  dbus.BusObject
	path dbus.ObjectPath
}

func (b *secretServiceBackend) open(ctx context.Context) (*secretSession, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, core.WrapStorageUnavailable(err, "keystore: session bus unreachable")
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, core.WrapStorageUnavailable(err, "keystore: session bus auth failed")
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, core.WrapStorageUnavailable(err, "keystore: session bus hello failed")
	}

	svc := conn.Object(secretsBusName, secretsObjectPath)
	var output dbus.Variant
	var sessionPath dbus.ObjectPath
	call := svc.CallWithContext(ctx, serviceInterface+".OpenSession", 0, "plain", dbus.MakeVariant(""))
	if call.Err != nil {
		conn.Close()
		return nil, core.WrapStorageUnavailable(call.Err, "keystore: secret service daemon unreachable")
	}
	if err := call.Store(&output, &sessionPath); err != nil {
		conn.Close()
		return nil, core.WrapBackendError(err, "keystore: open session decode failed")
	}
	return &secretSession{conn: conn, svc: svc, path: sessionPath}, nil
}

func (s *secretSession) close() {
	s.conn.Close()
}

// completePrompt drives an interactive prompt to completion and waits for
// its Completed signal. A dismissed prompt is an access denial.
func (s *secretSession) completePrompt(ctx context.Context, prompt dbus.ObjectPath) error {
	if prompt == noPrompt {
		return nil
	}
	if err := s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(prompt),
		dbus.WithMatchInterface(promptInterface),
	); err != nil {
		return core.WrapBackendError(err, "keystore: prompt signal match failed")
	}
	signals := make(chan *dbus.Signal, 4)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	call := s.conn.Object(secretsBusName, prompt).CallWithContext(ctx, promptInterface+".Prompt", 0, "")
	if call.Err != nil {
		return core.WrapBackendError(call.Err, "keystore: prompt invocation failed")
	}
	for {
		select {
		case <-ctx.Done():
			return core.WrapStorageUnavailable(ctx.Err(), "keystore: prompt wait cancelled")
		case sig, ok := <-signals:
			if !ok {
				return core.NewBackendError("keystore: prompt signal channel closed")
			}
			if sig.Path != prompt || sig.Name != promptInterface+".Completed" {
				continue
			}
			if dismissed, _ := sig.Body[0].(bool); dismissed {
				return core.NewAccessDenied("keystore: secret service prompt dismissed")
			}
			return nil
		}
	}
}

func (s *secretSession) unlock(ctx context.Context, paths []dbus.ObjectPath) error {
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	call := s.svc.CallWithContext(ctx, serviceInterface+".Unlock", 0, paths)
	if call.Err != nil {
		return core.WrapBackendError(call.Err, "keystore: unlock failed")
	}
	if err := call.Store(&unlocked, &prompt); err != nil {
		return core.WrapBackendError(err, "keystore: unlock decode failed")
	}
	return s.completePrompt(ctx, prompt)
}

func (s *secretSession) search(ctx context.Context, key Key) ([]dbus.ObjectPath, error) {
	attrs := map[string]string{
		attributeService: key.Service,
		attributeAccount: key.Account,
	}
	var unlocked, locked []dbus.ObjectPath
	call := s.svc.CallWithContext(ctx, serviceInterface+".SearchItems", 0, attrs)
	if call.Err != nil {
		return nil, core.WrapBackendError(call.Err, "keystore: search failed for "+key.String())
	}
	if err := call.Store(&unlocked, &locked); err != nil {
		return nil, core.WrapBackendError(err, "keystore: search decode failed")
	}
	if len(locked) > 0 {
		if err := s.unlock(ctx, locked); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, locked...)
	}
	return unlocked, nil
}

func (b *secretServiceBackend) Probe(ctx context.Context) error {
	session, err := b.open(ctx)
	if err != nil {
		return err
	}
	session.close()
	return nil
}

func (b *secretServiceBackend) Put(ctx context.Context, rec Record) error {
	session, err := b.open(ctx)
	if err != nil {
		return err
	}
	defer session.close()

	existing, err := session.search(ctx, rec.Key)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return core.NewDuplicateItem("keystore: record already exists: " + rec.Key.String())
	}

	if err := session.unlock(ctx, []dbus.ObjectPath{defaultCollection}); err != nil {
		return err
	}
	label := rec.Label
	if label == "" {
		label = rec.Key.String()
	}
	props := map[string]dbus.Variant{
		itemInterface + ".Label": dbus.MakeVariant(label),
		itemInterface + ".Attributes": dbus.MakeVariant(map[string]string{
			attributeService: rec.Key.Service,
			attributeAccount: rec.Key.Account,
		}),
	}
	secret := dbusSecret{
		Session:     session.path,
		Value:       rec.Value,
		ContentType: secretContentType,
	}
	collection := session.conn.Object(secretsBusName, defaultCollection)
	var itemPath, prompt dbus.ObjectPath
	call := collection.CallWithContext(ctx, collectionIface+".CreateItem", 0, props, secret, false)
	if call.Err != nil {
		return core.WrapBackendError(call.Err, "keystore: create item failed for "+rec.Key.String())
	}
	if err := call.Store(&itemPath, &prompt); err != nil {
		return core.WrapBackendError(err, "keystore: create item decode failed")
	}
	return session.completePrompt(ctx, prompt)
}

func (b *secretServiceBackend) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	session, err := b.open(ctx)
	if err != nil {
		return nil, false, err
	}
	defer session.close()

	items, err := session.search(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	var secret dbusSecret
	item := session.conn.Object(secretsBusName, items[0])
	call := item.CallWithContext(ctx, itemInterface+".GetSecret", 0, session.path)
	if call.Err != nil {
		return nil, false, core.WrapBackendError(call.Err, "keystore: get secret failed for "+key.String())
	}
	if err := call.Store(&secret); err != nil {
		return nil, false, core.WrapBackendError(err, "keystore: get secret decode failed")
	}
	return secret.Value, true, nil
}

func (b *secretServiceBackend) Delete(ctx context.Context, key Key) (bool, error) {
	session, err := b.open(ctx)
	if err != nil {
		return false, err
	}
	defer session.close()

	items, err := session.search(ctx, key)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	for _, path := range items {
		item := session.conn.Object(secretsBusName, path)
		var prompt dbus.ObjectPath
		call := item.CallWithContext(ctx, itemInterface+".Delete", 0)
		if call.Err != nil {
			return false, core.WrapBackendError(call.Err, "keystore: delete failed for "+key.String())
		}
		if err := call.Store(&prompt); err != nil {
			return false, core.WrapBackendError(err, "keystore: delete decode failed")
		}
		if err := session.completePrompt(ctx, prompt); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (b *secretServiceBackend) List(ctx context.Context, service string) ([]Key, error) {
	session, err := b.open(ctx)
	if err != nil {
		return nil, err
	}
	defer session.close()

	collection := session.conn.Object(secretsBusName, defaultCollection)
	variant, err := collection.GetProperty(collectionIface + ".Items")
	if err != nil {
		return nil, core.WrapBackendError(err, "keystore: list items failed")
	}
	paths, ok := variant.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, core.NewBackendError("keystore: unexpected items property shape")
	}

	keys := make([]Key, 0, len(paths))
	for _, path := range paths {
		item := session.conn.Object(secretsBusName, path)
		attrVariant, err := item.GetProperty(itemInterface + ".Attributes")
		if err != nil {
			continue
		}
		attrs, ok := attrVariant.Value().(map[string]string)
		if !ok {
			continue
		}
		svc := attrs[attributeService]
		account := attrs[attributeAccount]
		if svc == "" || account == "" {
			continue
		}
		if service != "" && svc != service {
			continue
		}
		keys = append(keys, Key{Service: svc, Account: account})
	}
	return keys, nil
}

func (b *secretServiceBackend) Metadata(ctx context.Context, key Key) (Metadata, bool, error) {
	session, err := b.open(ctx)
	if err != nil {
		return Metadata{}, false, err
	}
	defer session.close()

	items, err := session.search(ctx, key)
	if err != nil {
		return Metadata{}, false, err
	}
	if len(items) == 0 {
		return Metadata{}, false, nil
	}
	item := session.conn.Object(secretsBusName, items[0])

	meta := Metadata{}
	if variant, err := item.GetProperty(itemInterface + ".Created"); err == nil {
		if created, ok := variant.Value().(uint64); ok {
			meta.Created = unixSeconds(created)
		}
	}
	if variant, err := item.GetProperty(itemInterface + ".Modified"); err == nil {
		if modified, ok := variant.Value().(uint64); ok {
			meta.Modified = unixSeconds(modified)
		}
	}

	var secret dbusSecret
	call := item.CallWithContext(ctx, itemInterface+".GetSecret", 0, session.path)
	if call.Err != nil {
		return Metadata{}, false, core.WrapBackendError(call.Err, "keystore: metadata secret read failed for "+key.String())
	}
	if err := call.Store(&secret); err != nil {
		return Metadata{}, false, core.WrapBackendError(err, "keystore: metadata secret decode failed")
	}
	meta.Size = len(secret.Value)
	return meta, true, nil
}

var _ Backend = (*secretServiceBackend)(nil)
