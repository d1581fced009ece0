package security

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return NewCipher(NewStaticKeystore(key))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	ctx := context.Background()

	for _, plaintext := range [][]byte{
		[]byte("It was great"),
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	} {
		sealed, err := c.Encrypt(ctx, plaintext)
		require.NoError(t, err)

		assert.Len(t, sealed.Nonce, NonceSize)
		assert.Len(t, sealed.Tag, TagSize)
		assert.Len(t, sealed.Ciphertext, len(plaintext))

		got, err := c.Decrypt(ctx, sealed)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, got))
	}
}

func TestNoncesAreFresh(t *testing.T) {
	c := newTestCipher(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s, err := c.Encrypt(ctx, []byte("same plaintext"))
		require.NoError(t, err)
		assert.False(t, seen[string(s.Nonce)], "nonce repeated")
		seen[string(s.Nonce)] = true
	}
}

func TestBitFlipFailsAuthentication(t *testing.T) {
	c := newTestCipher(t)
	ctx := context.Background()

	sealed, err := c.Encrypt(ctx, []byte("Dear diary"))
	require.NoError(t, err)

	flip := func(b []byte, bit int) []byte {
		out := append([]byte(nil), b...)
		out[bit/8] ^= 1 << (bit % 8)
		return out
	}

	for bit := 0; bit < len(sealed.Ciphertext)*8; bit++ {
		tampered := Sealed{Nonce: sealed.Nonce, Ciphertext: flip(sealed.Ciphertext, bit), Tag: sealed.Tag}
		got, err := c.Decrypt(ctx, tampered)
		require.Error(t, err, "ciphertext bit %d", bit)
		assert.True(t, errors.Is(err, apperrors.ErrAuthenticationFailure))
		assert.Nil(t, got)
	}

	for bit := 0; bit < TagSize*8; bit++ {
		tampered := Sealed{Nonce: sealed.Nonce, Ciphertext: sealed.Ciphertext, Tag: flip(sealed.Tag, bit)}
		_, err := c.Decrypt(ctx, tampered)
		assert.True(t, errors.Is(err, apperrors.ErrAuthenticationFailure), "tag bit %d", bit)
	}
}

func TestWrongKeyFailsAuthentication(t *testing.T) {
	ctx := context.Background()
	a := newTestCipher(t)
	b := newTestCipher(t)

	sealed, err := a.Encrypt(ctx, []byte("secret"))
	require.NoError(t, err)

	_, err = b.Decrypt(ctx, sealed)
	assert.True(t, errors.Is(err, apperrors.ErrAuthenticationFailure))
}

func TestEncodeDecodeSealed(t *testing.T) {
	c := newTestCipher(t)
	ctx := context.Background()

	encoded, err := c.EncryptString(ctx, "Day One")
	require.NoError(t, err)

	got, err := c.DecryptString(ctx, encoded)
	require.NoError(t, err)
	assert.Equal(t, "Day One", got)

	_, err = c.DecryptString(ctx, "not base64 at all!")
	assert.True(t, errors.Is(err, apperrors.ErrAuthenticationFailure))

	_, err = DecodeSealed("AAAA")
	assert.True(t, errors.Is(err, apperrors.ErrAuthenticationFailure))
}

type flakyKeystore struct {
	mu    sync.Mutex
	calls int
	key   []byte
	fail  bool
}

func (f *flakyKeystore) LoadKey(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: device locked", apperrors.ErrKeyUnavailable)
	}
	return append([]byte(nil), f.key...), nil
}

func TestKeyUnavailableIsNotCached(t *testing.T) {
	ctx := context.Background()
	ks := &flakyKeystore{key: bytes.Repeat([]byte{7}, KeySize), fail: true}
	c := NewCipher(ks)

	_, err := c.Encrypt(ctx, []byte("x"))
	assert.True(t, errors.Is(err, apperrors.ErrKeyUnavailable))

	ks.fail = false
	sealed, err := c.Encrypt(ctx, []byte("x"))
	require.NoError(t, err)

	_, err = c.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, 2, ks.calls, "key should be loaded once after success")
}

func TestCancelledContextBeforeKeyLoad(t *testing.T) {
	c := newTestCipher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Encrypt(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentUse(t *testing.T) {
	c := newTestCipher(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := []byte(fmt.Sprintf("entry-%d", i))
			s, err := c.Encrypt(ctx, msg)
			if err != nil {
				errs <- err
				return
			}
			got, err := c.Decrypt(ctx, s)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(msg, got) {
				errs <- fmt.Errorf("mismatch for %d", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
