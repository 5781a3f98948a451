package secretcipher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}

func engines() []AEAD {
	return []AEAD{NewStdlibAEAD(nil), NewTinkAEAD()}
}

func newTestKey(t *testing.T, c *Cipher) *Key {
	t.Helper()
	key, err := c.GenerateKey(context.Background())
	require.NoError(t, err)
	return key
}

func flipBit(t *testing.T, b64 string, bit int) string {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	b[bit/8] ^= 1 << (bit % 8)
	return base64.StdEncoding.EncodeToString(b)
}

func TestCipher_RoundTrip(t *testing.T) {
	secrets := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"ascii", "hello world"},
		{"multi-byte", "Grüße aus Köln, 東京"},
		{"emoji", "🔐 secret 🗝️"},
		{"newlines", "line one\nline two\r\n\ttabbed"},
		{"long", strings.Repeat("0123456789abcdef", 4096)},
	}

	for _, engine := range engines() {
		c := New(WithEngine(engine))
		for _, tt := range secrets {
			t.Run(engine.Name()+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				key := newTestKey(t, c)

				bundle, err := c.Encrypt(ctx, tt.secret, key)
				require.NoError(t, err)

				got, err := c.Decrypt(ctx, bundle.Ciphertext, bundle.IV, bundle.RawKey)
				require.NoError(t, err)
				assert.Equal(t, tt.secret, got)
			})
		}
	}
}

func TestCipher_HelloWorldBundleShape(t *testing.T) {
	ctx := context.Background()
	key, err := GenerateKey(ctx)
	require.NoError(t, err)

	bundle, err := Encrypt(ctx, "hello world", key)
	require.NoError(t, err)

	iv, err := base64.StdEncoding.DecodeString(bundle.IV)
	require.NoError(t, err)
	assert.Len(t, iv, 12)

	raw, err := base64.StdEncoding.DecodeString(bundle.RawKey)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	exported, err := key.Export()
	require.NoError(t, err)
	assert.Equal(t, exported, raw, "bundle must carry the key used for encryption")

	sealed, err := base64.StdEncoding.DecodeString(bundle.Ciphertext)
	require.NoError(t, err)
	assert.Len(t, sealed, len("hello world")+TagSize, "ciphertext carries the appended tag")

	got, err := Decrypt(ctx, bundle.Ciphertext, bundle.IV, bundle.RawKey)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestCipher_IVFreshness(t *testing.T) {
	for _, engine := range engines() {
		t.Run(engine.Name(), func(t *testing.T) {
			c := New(WithEngine(engine))
			key := newTestKey(t, c)
			ctx := context.Background()

			seen := make(map[string]int, 1000)
			for i := 0; i < 1000; i++ {
				bundle, err := c.Encrypt(ctx, "identical plaintext", key)
				require.NoError(t, err)
				if prev, ok := seen[bundle.IV]; ok {
					t.Fatalf("IV reused at iteration %d (first seen at %d)", i, prev)
				}
				seen[bundle.IV] = i
			}
		})
	}
}

func TestCipher_TamperDetection(t *testing.T) {
	for _, engine := range engines() {
		t.Run(engine.Name(), func(t *testing.T) {
			c := New(WithEngine(engine))
			ctx := context.Background()
			bundle, err := c.Encrypt(ctx, "sensitive", newTestKey(t, c))
			require.NoError(t, err)

			fields := []struct {
				name   string
				value  string
				mutate func(b Bundle, v string) Bundle
			}{
				{"ciphertext", bundle.Ciphertext, func(b Bundle, v string) Bundle { b.Ciphertext = v; return b }},
				{"iv", bundle.IV, func(b Bundle, v string) Bundle { b.IV = v; return b }},
				{"rawKey", bundle.RawKey, func(b Bundle, v string) Bundle { b.RawKey = v; return b }},
			}

			for _, f := range fields {
				decoded, err := base64.StdEncoding.DecodeString(f.value)
				require.NoError(t, err)
				for bit := 0; bit < len(decoded)*8; bit++ {
					tampered := f.mutate(*bundle, flipBit(t, f.value, bit))
					got, err := c.DecryptBundle(ctx, &tampered)
					require.Error(t, err, "%s bit %d", f.name, bit)
					assert.ErrorIs(t, err, ErrDecryption, "%s bit %d", f.name, bit)
					assert.Empty(t, got)
				}
			}
		})
	}
}

func TestCipher_KeyScoping(t *testing.T) {
	c := New()
	ctx := context.Background()
	keyA := newTestKey(t, c)
	keyB := newTestKey(t, c)

	bundleA, err := c.Encrypt(ctx, "bound to A", keyA)
	require.NoError(t, err)
	bundleB, err := c.Encrypt(ctx, "bound to B", keyB)
	require.NoError(t, err)

	_, err = c.Decrypt(ctx, bundleA.Ciphertext, bundleA.IV, bundleB.RawKey)
	assert.ErrorIs(t, err, ErrDecryption)

	got, err := c.Decrypt(ctx, bundleA.Ciphertext, bundleA.IV, bundleA.RawKey)
	require.NoError(t, err)
	assert.Equal(t, "bound to A", got)
}

func TestCipher_EngineInterchange(t *testing.T) {
	ctx := context.Background()
	std := New(WithEngine(NewStdlibAEAD(nil)))
	tink := New(WithEngine(NewTinkAEAD()))

	b1, err := std.Encrypt(ctx, "from stdlib", newTestKey(t, std))
	require.NoError(t, err)
	got, err := tink.DecryptBundle(ctx, b1)
	require.NoError(t, err)
	assert.Equal(t, "from stdlib", got)

	b2, err := tink.Encrypt(ctx, "from tink", newTestKey(t, tink))
	require.NoError(t, err)
	got, err = std.DecryptBundle(ctx, b2)
	require.NoError(t, err)
	assert.Equal(t, "from tink", got)
}

func TestCipher_DecryptEncodingErrors(t *testing.T) {
	c := New()
	ctx := context.Background()
	bundle, err := c.Encrypt(ctx, "x", newTestKey(t, c))
	require.NoError(t, err)

	short := base64.StdEncoding.EncodeToString(make([]byte, 31))
	shortIV := base64.StdEncoding.EncodeToString(make([]byte, 16))

	tests := []struct {
		name       string
		ciphertext string
		iv         string
		rawKey     string
	}{
		{"ciphertext not base64", "%%%not-base64%%%", bundle.IV, bundle.RawKey},
		{"iv not base64", bundle.Ciphertext, "***", bundle.RawKey},
		{"key not base64", bundle.Ciphertext, bundle.IV, "!!"},
		{"url-safe alphabet rejected", bundle.Ciphertext, bundle.IV, strings.NewReplacer("+", "-", "/", "_").Replace(bundle.RawKey) + "-_"},
		{"key wrong length", bundle.Ciphertext, bundle.IV, short},
		{"iv wrong length", bundle.Ciphertext, shortIV, bundle.RawKey},
		{"empty key", bundle.Ciphertext, bundle.IV, ""},
		{"empty iv", bundle.Ciphertext, "", bundle.RawKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decrypt(ctx, tt.ciphertext, tt.iv, tt.rawKey)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEncoding)
			assert.NotErrorIs(t, err, ErrDecryption)
			assert.Empty(t, got)
		})
	}
}

func TestCipher_TruncatedCiphertext(t *testing.T) {
	c := New()
	ctx := context.Background()
	bundle, err := c.Encrypt(ctx, "truncate me", newTestKey(t, c))
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(bundle.Ciphertext)
	require.NoError(t, err)

	for _, n := range []int{0, 1, TagSize - 1, len(sealed) - 1} {
		truncated := base64.StdEncoding.EncodeToString(sealed[:n])
		_, err := c.Decrypt(ctx, truncated, bundle.IV, bundle.RawKey)
		assert.ErrorIs(t, err, ErrDecryption, "length %d", n)
	}
}

func TestCipher_GenerateKeyFailure(t *testing.T) {
	c := New(WithRandom(failingReader{}))

	key, err := c.GenerateKey(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyGeneration)
	assert.Nil(t, key)
}

func TestCipher_EncryptIVFailure(t *testing.T) {
	good := New()
	key := newTestKey(t, good)

	c := New(WithRandom(failingReader{}))
	bundle, err := c.Encrypt(context.Background(), "secret", key)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncryption)
	assert.Nil(t, bundle)
}

func TestCipher_EncryptKeyChecks(t *testing.T) {
	ctx := context.Background()
	c := New()
	raw := make([]byte, KeySize)

	decryptOnly, err := ImportKey(raw, UsageDecrypt, true)
	require.NoError(t, err)
	notExtractable, err := ImportKey(raw, UsageEncrypt|UsageDecrypt, false)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  *Key
	}{
		{"nil key", nil},
		{"decrypt-only key", decryptOnly},
		{"non-extractable key", notExtractable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, err := c.Encrypt(ctx, "secret", tt.key)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEncryption)
			assert.Nil(t, bundle)
		})
	}
}

func TestCipher_InvalidUTF8Secret(t *testing.T) {
	c := New()
	_, err := c.Encrypt(context.Background(), string([]byte{0xff, 0xfe}), newTestKey(t, c))
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestCipher_InvalidUTF8Plaintext(t *testing.T) {
	ctx := context.Background()
	engine := NewStdlibAEAD(nil)
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i)
	}

	iv, sealed, err := engine.Seal(raw, []byte{0xc3, 0x28})
	require.NoError(t, err)

	_, err = New(WithEngine(engine)).Decrypt(ctx,
		base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestCipher_CanceledContext(t *testing.T) {
	c := New()
	key := newTestKey(t, c)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GenerateKey(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrKeyGeneration)

	_, err = c.Encrypt(ctx, "secret", key)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrEncryption)

	bundle, err := c.Encrypt(context.Background(), "secret", key)
	require.NoError(t, err)

	_, err = c.DecryptBundle(ctx, bundle)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDecryption, "cancellation is not an authentication failure")
}

func TestCipher_Observer(t *testing.T) {
	type call struct {
		op     Operation
		engine string
		failed bool
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	c := New(WithObserver(func(op Operation, engine string, d time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		calls = append(calls, call{op, engine, err != nil})
	}))

	ctx := context.Background()
	key := newTestKey(t, c)
	bundle, err := c.Encrypt(ctx, "observed", key)
	require.NoError(t, err)
	_, err = c.Decrypt(ctx, bundle.Ciphertext, bundle.IV, "bad")
	require.Error(t, err)

	assert.Equal(t, []call{
		{OpGenerateKey, "stdlib", false},
		{OpEncrypt, "stdlib", false},
		{OpDecrypt, "stdlib", true},
	}, calls)
}

func TestCipher_ConcurrentUse(t *testing.T) {
	c := New()
	key := newTestKey(t, c)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			secret := fmt.Sprintf("secret-%d", i)
			bundle, err := c.Encrypt(ctx, secret, key)
			if err != nil {
				errs <- err
				return
			}
			got, err := c.DecryptBundle(ctx, bundle)
			if err != nil {
				errs <- err
				return
			}
			if got != secret {
				errs <- fmt.Errorf("got %q, want %q", got, secret)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestCipher_DecryptBundleNil(t *testing.T) {
	_, err := New().DecryptBundle(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEncoding)
}
