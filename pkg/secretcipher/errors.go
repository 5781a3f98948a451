package secretcipher

import "errors"

var (
	// ErrKeyGeneration is returned when no key can be produced, typically
	// because the random source is unavailable.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrEncryption is returned when the cipher rejects the key or the
	// plaintext cannot be sealed.
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption is returned when the authentication tag does not verify.
	// The ciphertext, IV or key was altered, or they do not belong together.
	ErrDecryption = errors.New("decryption failed")

	// ErrEncoding is returned for malformed base64 input, wrong decoded
	// lengths and text that is not valid UTF-8.
	ErrEncoding = errors.New("encoding error")
)
