package secretcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	tinksubtle "github.com/google/tink/go/aead/subtle"
)

// AEAD seals and opens AES-256-GCM payloads. Implementations must draw a
// fresh random IV on every Seal and return it separately from the sealed
// bytes (ciphertext with the tag appended).
type AEAD interface {
	Seal(key, plaintext []byte) (iv, sealed []byte, err error)
	Open(key, iv, sealed []byte) ([]byte, error)
	Name() string
}

// StdlibAEAD is the crypto/cipher GCM engine.
type StdlibAEAD struct {
	random io.Reader
}

// NewStdlibAEAD creates a GCM engine reading IVs from random. A nil reader
// means crypto/rand.
func NewStdlibAEAD(random io.Reader) *StdlibAEAD {
	if random == nil {
		random = rand.Reader
	}
	return &StdlibAEAD{random: random}
}

func (e *StdlibAEAD) gcm(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be exactly %d bytes for AES-256, got %d bytes", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under a fresh IV.
func (e *StdlibAEAD) Seal(key, plaintext []byte) ([]byte, []byte, error) {
	gcm, err := e.gcm(key)
	if err != nil {
		return nil, nil, err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(e.random, iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	return iv, gcm.Seal(nil, iv, plaintext, nil), nil
}

// Open verifies the tag and returns the plaintext.
func (e *StdlibAEAD) Open(key, iv, sealed []byte) ([]byte, error) {
	gcm, err := e.gcm(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("IV must be exactly %d bytes, got %d bytes", IVSize, len(iv))
	}

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}

// Name returns the engine identifier.
func (e *StdlibAEAD) Name() string {
	return "stdlib"
}

// TinkAEAD runs AES-256-GCM through Google Tink's subtle primitive. Tink
// prepends the IV to its output, which is split off so bundles from both
// engines are interchangeable.
type TinkAEAD struct{}

// NewTinkAEAD creates a Tink-backed engine.
func NewTinkAEAD() *TinkAEAD {
	return &TinkAEAD{}
}

// primitive pins the key to AES-256; Tink alone would also accept AES-128.
func (e *TinkAEAD) primitive(key []byte) (*tinksubtle.AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be exactly %d bytes for AES-256, got %d bytes", KeySize, len(key))
	}

	a, err := tinksubtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create tink AES-GCM primitive: %w", err)
	}
	return a, nil
}

// Seal encrypts plaintext; Tink draws the IV internally.
func (e *TinkAEAD) Seal(key, plaintext []byte) ([]byte, []byte, error) {
	a, err := e.primitive(key)
	if err != nil {
		return nil, nil, err
	}

	out, err := a.Encrypt(plaintext, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encrypt data: %w", err)
	}
	if len(out) < IVSize+TagSize {
		return nil, nil, fmt.Errorf("tink output too short: %d bytes", len(out))
	}

	iv := make([]byte, IVSize)
	copy(iv, out[:IVSize])
	return iv, out[IVSize:], nil
}

// Open verifies the tag and returns the plaintext.
func (e *TinkAEAD) Open(key, iv, sealed []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("IV must be exactly %d bytes, got %d bytes", IVSize, len(iv))
	}

	a, err := e.primitive(key)
	if err != nil {
		return nil, err
	}

	in := make([]byte, 0, len(iv)+len(sealed))
	in = append(in, iv...)
	in = append(in, sealed...)

	plaintext, err := a.Decrypt(in, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}

// Name returns the engine identifier.
func (e *TinkAEAD) Name() string {
	return "tink"
}

// EngineByName returns the engine registered under name. An empty name
// selects the stdlib engine.
func EngineByName(name string) (AEAD, error) {
	switch name {
	case "", "stdlib":
		return NewStdlibAEAD(nil), nil
	case "tink":
		return NewTinkAEAD(), nil
	default:
		return nil, fmt.Errorf("unsupported cipher engine: %s", name)
	}
}
