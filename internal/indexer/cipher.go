// ABOUTME: AES-256-GCM sealing for document bodies before they leave the process
// ABOUTME: Provides ciphertext hashing so stored points stay verifiable without plaintext

package indexer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// KeySize is the required symmetric key length in bytes.
const KeySize = 32

// Cipher seals document bodies with AES-256-GCM. Sealed output is
// nonce||ciphertext||tag so a single blob round-trips through Open.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipherFromHex builds a Cipher from a hex-encoded 32-byte key.
func NewCipherFromHex(keyHex string) (*Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding symmetric key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("symmetric key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext||tag.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func (c *Cipher) Open(blob []byte) ([]byte, error) {
	if len(blob) < c.aead.NonceSize() {
		return nil, errors.New("sealed blob too short")
	}
	nonce, ct := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed blob: %w", err)
	}
	return plaintext, nil
}

// HashHex returns the SHA3-256 digest of data as a hex string.
func HashHex(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
