package security

import (
	"bufio"
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amirk1998/secure-journal/pkg/errors"
)

// Keystore holds the long-lived data key. Implementations return
// errors.ErrKeyUnavailable when the key cannot be reached.
type Keystore interface {
	LoadKey(ctx context.Context) ([]byte, error)
}

// StaticKeystore serves a fixed key. Used by tests and tooling.
type StaticKeystore struct {
	key []byte
}

func NewStaticKeystore(key []byte) *StaticKeystore {
	k := make([]byte, len(key))
	copy(k, key)
	return &StaticKeystore{key: k}
}

func (s *StaticKeystore) LoadKey(ctx context.Context) ([]byte, error) {
	if len(s.key) == 0 {
		return nil, fmt.Errorf("%w: static keystore is empty", errors.ErrKeyUnavailable)
	}
	k := make([]byte, len(s.key))
	copy(k, s.key)
	return k, nil
}

// EnvKeystore reads a base64 encoded 32-byte key from an environment variable
type EnvKeystore struct {
	envVar string
}

func NewEnvKeystore(envVar string) *EnvKeystore {
	return &EnvKeystore{envVar: envVar}
}

func (e *EnvKeystore) LoadKey(ctx context.Context) ([]byte, error) {
	value := os.Getenv(e.envVar)
	if value == "" {
		return nil, fmt.Errorf("%w: environment variable %s not set", errors.ErrKeyUnavailable, e.envVar)
	}

	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be base64-encoded", errors.ErrKeyUnavailable, e.envVar)
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %s must decode to exactly %d bytes", errors.ErrKeyUnavailable, e.envVar, KeySize)
	}

	return key, nil
}

// FileKeystore keeps the data key on disk wrapped with AES-GCM under an
// Argon2id key derived from a passphrase. The key is generated on first use.
//
// File layout:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>
//	<base64 nonce||wrapped key||tag>
type FileKeystore struct {
	path       string
	passphrase string
	params     func() (KDFParams, error)
}

type FileKeystoreOption func(*FileKeystore)

// WithKDFCost overrides the Argon2id cost for newly generated key files
func WithKDFCost(time, memory uint32) FileKeystoreOption {
	return func(fk *FileKeystore) {
		fk.params = func() (KDFParams, error) {
			p, err := NewKDFParams()
			if err != nil {
				return KDFParams{}, err
			}
			p.Time = time
			p.Memory = memory
			return p, nil
		}
	}
}

func NewFileKeystore(path, passphrase string, opts ...FileKeystoreOption) *FileKeystore {
	fk := &FileKeystore{
		path:       path,
		passphrase: passphrase,
		params:     NewKDFParams,
	}
	for _, opt := range opts {
		opt(fk)
	}
	return fk
}

func (fk *FileKeystore) LoadKey(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fk.path)
	if os.IsNotExist(err) {
		return fk.generate(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read key file: %v", errors.ErrKeyUnavailable, err)
	}

	return fk.unwrap(data)
}

func (fk *FileKeystore) unwrap(data []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 {
		return nil, fmt.Errorf("%w: malformed key file", errors.ErrKeyUnavailable)
	}

	params, err := ParseKDFParams(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrKeyUnavailable, err)
	}

	wrapped, err := base64.StdEncoding.DecodeString(lines[1])
	if err != nil || len(wrapped) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: malformed wrapped key", errors.ErrKeyUnavailable)
	}

	kek := DeriveKEK(fk.passphrase, params)
	defer wipe(kek)

	aead, err := newAEAD(kek)
	if err != nil {
		return nil, err
	}

	key, err := aead.Open(nil, wrapped[:NonceSize], wrapped[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupted key file", errors.ErrKeyUnavailable)
	}

	return key, nil
}

func (fk *FileKeystore) generate(ctx context.Context) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	params, err := fk.params()
	if err != nil {
		return nil, err
	}

	kek := DeriveKEK(fk.passphrase, params)
	defer wipe(kek)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aead, err := newAEAD(kek)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	wrapped := aead.Seal(nonce, nonce, key, nil)

	content := params.Encode() + "\n" + base64.StdEncoding.EncodeToString(wrapped) + "\n"
	if err := writeFileAtomic(fk.path, []byte(content)); err != nil {
		return nil, fmt.Errorf("%w: failed to persist key file: %v", errors.ErrKeyUnavailable, err)
	}

	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
