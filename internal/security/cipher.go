package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/amirk1998/secure-journal/pkg/errors"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12 // 96-bit GCM nonce
	TagSize   = 16 // 128-bit GCM tag
)

// Sealed is the output of one encryption call.
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Encode packs nonce||ciphertext||tag as base64 for column storage.
func (s Sealed) Encode() string {
	buf := make([]byte, 0, len(s.Nonce)+len(s.Ciphertext)+len(s.Tag))
	buf = append(buf, s.Nonce...)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeSealed reverses Encode. Anything that cannot be a sealed payload is
// reported as an authentication failure.
func DecodeSealed(encoded string) (Sealed, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: malformed payload: %v", errors.ErrAuthenticationFailure, err)
	}
	return SplitSealed(data)
}

// SplitSealed splits a raw nonce||ciphertext||tag buffer.
func SplitSealed(data []byte) (Sealed, error) {
	if len(data) < NonceSize+TagSize {
		return Sealed{}, fmt.Errorf("%w: ciphertext too short", errors.ErrAuthenticationFailure)
	}
	return Sealed{
		Nonce:      data[:NonceSize],
		Ciphertext: data[NonceSize : len(data)-TagSize],
		Tag:        data[len(data)-TagSize:],
	}, nil
}

// Cipher encrypts and decrypts payloads with AES-256-GCM under the key held
// by its Keystore. The key is loaded on first use and never handed out.
type Cipher struct {
	keystore Keystore
	random   io.Reader

	mu   sync.Mutex
	aead cipher.AEAD
}

// NewCipher creates a cipher service backed by the given keystore
func NewCipher(ks Keystore) *Cipher {
	return &Cipher{keystore: ks, random: rand.Reader}
}

// gcm returns the AEAD, loading the key if this is the first call.
// A failed load is not cached so a later call can succeed once the store is reachable.
func (c *Cipher) gcm(ctx context.Context) (cipher.AEAD, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.aead != nil {
		return c.aead, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.keystore.LoadKey(ctx)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes for AES-256", errors.ErrKeyUnavailable, KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	c.aead = aead
	return aead, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *Cipher) Encrypt(ctx context.Context, plaintext []byte) (Sealed, error) {
	aead, err := c.gcm(ctx)
	if err != nil {
		return Sealed{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return Sealed{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := aead.Seal(nil, nonce, plaintext, nil)

	return Sealed{
		Nonce:      nonce,
		Ciphertext: out[:len(out)-TagSize],
		Tag:        out[len(out)-TagSize:],
	}, nil
}

// Decrypt opens a sealed payload. Tampering, corruption or a wrong key all
// surface as ErrAuthenticationFailure.
func (c *Cipher) Decrypt(ctx context.Context, s Sealed) ([]byte, error) {
	aead, err := c.gcm(ctx)
	if err != nil {
		return nil, err
	}

	if len(s.Nonce) != NonceSize || len(s.Tag) != TagSize {
		return nil, fmt.Errorf("%w: bad nonce or tag length", errors.ErrAuthenticationFailure)
	}

	buf := make([]byte, 0, len(s.Ciphertext)+TagSize)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)

	plaintext, err := aead.Open(nil, s.Nonce, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailure, err)
	}

	return plaintext, nil
}

// EncryptString seals a text field and returns its column encoding
func (c *Cipher) EncryptString(ctx context.Context, plaintext string) (string, error) {
	s, err := c.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return s.Encode(), nil
}

// DecryptString opens a column value produced by EncryptString
func (c *Cipher) DecryptString(ctx context.Context, encoded string) (string, error) {
	s, err := DecodeSealed(encoded)
	if err != nil {
		return "", err
	}

	plaintext, err := c.Decrypt(ctx, s)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
