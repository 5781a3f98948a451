package secretcipher

import (
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// IVSize is the GCM nonce length in bytes.
	IVSize = 12

	// TagSize is the GCM authentication tag length appended to every ciphertext.
	TagSize = 16
)

// Usage restricts what a Key may be used for.
type Usage uint8

const (
	UsageEncrypt Usage = 1 << iota
	UsageDecrypt
)

func (u Usage) String() string {
	var parts []string
	if u&UsageEncrypt != 0 {
		parts = append(parts, "encrypt")
	}
	if u&UsageDecrypt != 0 {
		parts = append(parts, "decrypt")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Key is an opaque AES-256-GCM key. The zero value is not usable; obtain keys
// from GenerateKey or ImportKey.
type Key struct {
	raw         [KeySize]byte
	usages      Usage
	extractable bool
}

// ImportKey wraps raw key bytes with the given usages. Decrypt imports keys
// as decrypt-only and not extractable.
func ImportKey(raw []byte, usages Usage, extractable bool) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: key must be exactly %d bytes for AES-256, got %d bytes", ErrEncoding, KeySize, len(raw))
	}

	k := &Key{usages: usages, extractable: extractable}
	copy(k.raw[:], raw)
	return k, nil
}

// Can reports whether the key permits the given usage.
func (k *Key) Can(u Usage) bool {
	return k != nil && k.usages&u == u
}

// Usages returns the usages the key was created with.
func (k *Key) Usages() Usage {
	if k == nil {
		return 0
	}
	return k.usages
}

// Extractable reports whether Export may be called.
func (k *Key) Extractable() bool {
	return k != nil && k.extractable
}

// Export returns a copy of the raw key bytes.
func (k *Key) Export() ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: nil key", ErrEncryption)
	}
	if !k.extractable {
		return nil, fmt.Errorf("%w: key is not extractable", ErrEncryption)
	}
	out := make([]byte, KeySize)
	copy(out, k.raw[:])
	return out, nil
}

// String never prints key material.
func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	return fmt.Sprintf("aes-256-gcm key (%s)", k.usages)
}

// GoString keeps key material out of %#v output.
func (k *Key) GoString() string {
	return k.String()
}
