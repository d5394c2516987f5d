package keystore

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/goliatone/go-hostbridge/core"
)

const (
	fileFormatVersion = 1
	fileEnvelopeAlg   = "aes-256-gcm"

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// FileBackend is the headless fallback: an encrypted keyring file for hosts
// without a reachable desktop secret service. Values are sealed per record
// with AES-256-GCM under a key derived from caller-supplied key material;
// without key material the backend reports itself unavailable rather than
// degrade to plaintext.
type FileBackend struct {
	path        string
	keyMaterial []byte
	now         func() time.Time

	mu  sync.Mutex
	key []byte
}

type FileOption func(*FileBackend)

func WithFileClock(now func() time.Time) FileOption {
	return func(b *FileBackend) {
		if now != nil {
			b.now = now
		}
	}
}

func NewFileBackend(path string, keyMaterial []byte, opts ...FileOption) (*FileBackend, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, core.NewBadInput("keystore: fallback file path is required")
	}
	backend := &FileBackend{
		path:        trimmed,
		keyMaterial: bytes.TrimSpace(keyMaterial),
		now:         core.SystemClock,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(backend)
	}
	return backend, nil
}

type fileDocument struct {
	Version int                   `json:"version"`
	Salt    string                `json:"salt"`
	Records map[string]fileRecord `json:"records"`
}

type fileRecord struct {
	Service    string       `json:"service"`
	Account    string       `json:"account"`
	Label      string       `json:"label,omitempty"`
	Comment    string       `json:"comment,omitempty"`
	Policy     filePolicy   `json:"policy"`
	Envelope   fileEnvelope `json:"envelope"`
	Created    time.Time    `json:"created"`
	Modified   time.Time    `json:"modified"`
	PlainBytes int          `json:"size"`
}

type filePolicy struct {
	RequireBiometry       bool   `json:"require_biometry"`
	RequireUserPresence   bool   `json:"require_user_presence"`
	AllowPasscodeFallback bool   `json:"allow_passcode_fallback"`
	Accessibility         string `json:"accessibility"`
}

type fileEnvelope struct {
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func (b *FileBackend) Name() string {
	return "file"
}

func (b *FileBackend) Probe(ctx context.Context) error {
	if len(b.keyMaterial) == 0 {
		return core.NewStorageUnavailable("keystore: fallback keyring has no key material configured")
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return core.WrapStorageUnavailable(err, "keystore: fallback keyring directory is not writable")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.loadLocked(); err != nil {
		return err
	}
	return nil
}

func (b *FileBackend) Put(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.loadLocked()
	if err != nil {
		return err
	}
	id := rec.Key.id()
	if _, exists := doc.Records[id]; exists {
		return core.NewDuplicateItem("keystore: record already exists: " + rec.Key.String())
	}
	envelope, err := b.sealLocked(doc, rec.Value)
	if err != nil {
		return err
	}
	now := b.now()
	doc.Records[id] = fileRecord{
		Service: rec.Key.Service,
		Account: rec.Key.Account,
		Label:   rec.Label,
		Comment: rec.Comment,
		Policy: filePolicy{
			RequireBiometry:       rec.Policy.RequireBiometry,
			RequireUserPresence:   rec.Policy.RequireUserPresence,
			AllowPasscodeFallback: rec.Policy.AllowPasscodeFallback,
			Accessibility:         string(rec.Policy.Accessibility),
		},
		Envelope:   envelope,
		Created:    now,
		Modified:   now,
		PlainBytes: len(rec.Value),
	}
	return b.saveLocked(doc)
}

func (b *FileBackend) Get(_ context.Context, key Key) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.loadLocked()
	if err != nil {
		return nil, false, err
	}
	rec, ok := doc.Records[key.id()]
	if !ok {
		return nil, false, nil
	}
	plaintext, err := b.openLocked(doc, rec.Envelope)
	if err != nil {
		return nil, false, err
	}
	return plaintext, true, nil
}

func (b *FileBackend) Delete(_ context.Context, key Key) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.loadLocked()
	if err != nil {
		return false, err
	}
	id := key.id()
	if _, ok := doc.Records[id]; !ok {
		return false, nil
	}
	delete(doc.Records, id)
	if err := b.saveLocked(doc); err != nil {
		return false, err
	}
	return true, nil
}

func (b *FileBackend) List(_ context.Context, service string) ([]Key, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.loadLocked()
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(doc.Records))
	for _, rec := range doc.Records {
		if service != "" && rec.Service != service {
			continue
		}
		keys = append(keys, Key{Service: rec.Service, Account: rec.Account})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Service != keys[j].Service {
			return keys[i].Service < keys[j].Service
		}
		return keys[i].Account < keys[j].Account
	})
	return keys, nil
}

func (b *FileBackend) Metadata(_ context.Context, key Key) (Metadata, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.loadLocked()
	if err != nil {
		return Metadata{}, false, err
	}
	rec, ok := doc.Records[key.id()]
	if !ok {
		return Metadata{}, false, nil
	}
	return Metadata{Created: rec.Created, Modified: rec.Modified, Size: rec.PlainBytes}, true, nil
}

func (b *FileBackend) loadLocked() (*fileDocument, error) {
	if len(b.keyMaterial) == 0 {
		return nil, core.NewStorageUnavailable("keystore: fallback keyring has no key material configured")
	}
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return b.newDocumentLocked()
	}
	if err != nil {
		return nil, core.WrapStorageUnavailable(err, "keystore: read fallback keyring")
	}
	doc := &fileDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, core.WrapBackendError(err, "keystore: fallback keyring is corrupt")
	}
	if doc.Version != fileFormatVersion {
		return nil, core.NewBackendError(fmt.Sprintf("keystore: unsupported fallback keyring version %d", doc.Version))
	}
	if doc.Records == nil {
		doc.Records = make(map[string]fileRecord)
	}
	if err := b.deriveKeyLocked(doc.Salt); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *FileBackend) newDocumentLocked() (*fileDocument, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, core.WrapBackendError(err, "keystore: salt generation failed")
	}
	doc := &fileDocument{
		Version: fileFormatVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Records: make(map[string]fileRecord),
	}
	if err := b.deriveKeyLocked(doc.Salt); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *FileBackend) deriveKeyLocked(encodedSalt string) error {
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return core.WrapBackendError(err, "keystore: fallback keyring salt is corrupt")
	}
	key, err := scrypt.Key(b.keyMaterial, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return core.WrapBackendError(err, "keystore: key derivation failed")
	}
	b.key = key
	return nil
}

func (b *FileBackend) sealLocked(doc *fileDocument, plaintext []byte) (fileEnvelope, error) {
	gcm, err := b.cipherLocked()
	if err != nil {
		return fileEnvelope{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fileEnvelope{}, core.WrapBackendError(err, "keystore: nonce generation failed")
	}
	sealed := gcm.Seal(nil, nonce, plaintext, []byte(doc.Salt))
	return fileEnvelope{
		Algorithm:  fileEnvelopeAlg,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

func (b *FileBackend) openLocked(doc *fileDocument, envelope fileEnvelope) ([]byte, error) {
	if envelope.Algorithm != fileEnvelopeAlg {
		return nil, core.NewBackendError(fmt.Sprintf("keystore: unknown envelope algorithm %q", envelope.Algorithm))
	}
	gcm, err := b.cipherLocked()
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(envelope.Nonce)
	if err != nil {
		return nil, core.WrapBackendError(err, "keystore: envelope nonce is corrupt")
	}
	sealed, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, core.WrapBackendError(err, "keystore: envelope ciphertext is corrupt")
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(doc.Salt))
	if err != nil {
		return nil, core.WrapAccessDenied(err, "keystore: fallback keyring decryption failed")
	}
	return plaintext, nil
}

func (b *FileBackend) cipherLocked() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, core.WrapBackendError(err, "keystore: create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, core.WrapBackendError(err, "keystore: create gcm")
	}
	return gcm, nil
}

// saveLocked writes atomically: full temp file then rename, 0600 throughout.
func (b *FileBackend) saveLocked(doc *fileDocument) error {
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return core.WrapBackendError(err, "keystore: encode fallback keyring")
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return core.WrapStorageUnavailable(err, "keystore: fallback keyring directory is not writable")
	}
	tmp, err := os.CreateTemp(dir, ".keyring-*")
	if err != nil {
		return core.WrapStorageUnavailable(err, "keystore: create fallback keyring temp file")
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.WrapBackendError(err, "keystore: restrict fallback keyring permissions")
	}
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.WrapBackendError(err, "keystore: write fallback keyring")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return core.WrapBackendError(err, "keystore: close fallback keyring")
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return core.WrapBackendError(err, "keystore: replace fallback keyring")
	}
	return nil
}

var _ Backend = (*FileBackend)(nil)
