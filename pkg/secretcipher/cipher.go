// Package secretcipher encrypts opaque secret strings with AES-256-GCM and
// returns everything needed to decrypt them as three base64 strings.
//
// Every Encrypt call draws a fresh 12-byte IV. The exported raw key travels in
// the bundle next to the ciphertext; keeping the two apart in storage or
// transit is up to the caller.
//
// A context that is already done fails the call with ctx.Err() itself, not
// wrapped in any of the package's error sentinels.
package secretcipher

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// Bundle is the output of Encrypt. All fields are standard padded base64.
type Bundle struct {
	IV         string `json:"iv" yaml:"iv"`
	Ciphertext string `json:"ciphertext" yaml:"ciphertext"`
	RawKey     string `json:"rawKey" yaml:"rawKey"`
}

// Operation names a cipher call for observers.
type Operation string

const (
	OpGenerateKey Operation = "generate_key"
	OpEncrypt     Operation = "encrypt"
	OpDecrypt     Operation = "decrypt"
)

// Observer is notified after every operation completes.
type Observer func(op Operation, engine string, d time.Duration, err error)

// Cipher performs the generate/encrypt/decrypt workflow. It holds no key
// state and is safe for concurrent use.
type Cipher struct {
	random   io.Reader
	engine   AEAD
	observer Observer
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithRandom sets the source for key material and stdlib IVs.
func WithRandom(r io.Reader) Option {
	return func(c *Cipher) {
		c.random = r
	}
}

// WithEngine selects the AEAD engine.
func WithEngine(e AEAD) Option {
	return func(c *Cipher) {
		c.engine = e
	}
}

// WithObserver installs an operation observer.
func WithObserver(o Observer) Option {
	return func(c *Cipher) {
		c.observer = o
	}
}

// New creates a Cipher. Defaults are crypto/rand and the stdlib engine.
func New(opts ...Option) *Cipher {
	c := &Cipher{}
	for _, opt := range opts {
		opt(c)
	}
	if c.random == nil {
		c.random = rand.Reader
	}
	if c.engine == nil {
		c.engine = NewStdlibAEAD(c.random)
	}
	return c
}

// Engine returns the name of the AEAD engine in use.
func (c *Cipher) Engine() string {
	return c.engine.Name()
}

func (c *Cipher) observe(op Operation, start time.Time, err error) {
	if c.observer != nil {
		c.observer(op, c.engine.Name(), time.Since(start), err)
	}
}

// GenerateKey creates an extractable 256-bit key usable for both encrypt and
// decrypt.
func (c *Cipher) GenerateKey(ctx context.Context) (key *Key, err error) {
	start := time.Now()
	defer func() { c.observe(OpGenerateKey, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key = &Key{usages: UsageEncrypt | UsageDecrypt, extractable: true}
	if _, err := io.ReadFull(c.random, key.raw[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to read random key material: %w", ErrKeyGeneration, err)
	}
	return key, nil
}

// Encrypt seals secret under key with a fresh IV and returns the base64
// encoded IV, ciphertext (tag appended) and raw key.
func (c *Cipher) Encrypt(ctx context.Context, secret string, key *Key) (bundle *Bundle, err error) {
	start := time.Now()
	defer func() { c.observe(OpEncrypt, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(secret) {
		return nil, fmt.Errorf("%w: secret is not valid UTF-8", ErrEncoding)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", ErrEncryption)
	}
	if !key.Can(UsageEncrypt) {
		return nil, fmt.Errorf("%w: key usages %s do not permit encrypt", ErrEncryption, key.usages)
	}

	// Export first so a non-extractable key fails before any sealing.
	raw, err := key.Export()
	if err != nil {
		return nil, err
	}

	iv, sealed, err := c.engine.Seal(key.raw[:], []byte(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	return &Bundle{
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		RawKey:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Decrypt reverses Encrypt. The key is imported decrypt-only.
func (c *Cipher) Decrypt(ctx context.Context, ciphertextB64, ivB64, rawKeyB64 string) (secret string, err error) {
	start := time.Now()
	defer func() { c.observe(OpDecrypt, start, err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	sealed, err := decodeField("ciphertext", ciphertextB64, -1)
	if err != nil {
		return "", err
	}
	iv, err := decodeField("iv", ivB64, IVSize)
	if err != nil {
		return "", err
	}
	raw, err := decodeField("rawKey", rawKeyB64, KeySize)
	if err != nil {
		return "", err
	}

	key, err := ImportKey(raw, UsageDecrypt, false)
	if err != nil {
		return "", err
	}

	plaintext, err := c.engine.Open(key.raw[:], iv, sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrEncoding)
	}
	return string(plaintext), nil
}

// DecryptBundle is Decrypt over a Bundle's fields.
func (c *Cipher) DecryptBundle(ctx context.Context, b *Bundle) (string, error) {
	if b == nil {
		return "", fmt.Errorf("%w: nil bundle", ErrEncoding)
	}
	return c.Decrypt(ctx, b.Ciphertext, b.IV, b.RawKey)
}

// decodeField decodes a base64 field; want < 0 skips the length check.
func decodeField(name, value string, want int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64: %w", ErrEncoding, name, err)
	}
	if want >= 0 && len(b) != want {
		return nil, fmt.Errorf("%w: %s must decode to %d bytes, got %d", ErrEncoding, name, want, len(b))
	}
	return b, nil
}

var defaultCipher = New()

// GenerateKey creates a key with the default Cipher.
func GenerateKey(ctx context.Context) (*Key, error) {
	return defaultCipher.GenerateKey(ctx)
}

// Encrypt encrypts secret with the default Cipher.
func Encrypt(ctx context.Context, secret string, key *Key) (*Bundle, error) {
	return defaultCipher.Encrypt(ctx, secret, key)
}

// Decrypt decrypts a bundle's fields with the default Cipher.
func Decrypt(ctx context.Context, ciphertextB64, ivB64, rawKeyB64 string) (string, error) {
	return defaultCipher.Decrypt(ctx, ciphertextB64, ivB64, rawKeyB64)
}
