package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

func main() {
	// Generate a new AES-256 key
	key, err := secretcipher.GenerateKey(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}

	raw, err := key.Export()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting key: %v\n", err)
		os.Exit(1)
	}

	keyBase64 := base64.StdEncoding.EncodeToString(raw)

	fmt.Printf("Generated AES-256 key (base64 encoded):\n%s\n", keyBase64)
	fmt.Printf("\nDecrypt a bundle encrypted under this key with:\n")
	fmt.Printf("secret-cipher decrypt --ciphertext <ciphertext> --iv <iv> --key \"%s\"\n", keyBase64)
}
