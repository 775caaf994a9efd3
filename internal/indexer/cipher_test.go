// ABOUTME: Tests for the sealing cipher, hashing, and the stub embedder
// ABOUTME: Covers round trips, key validation, tamper detection, and determinism

package indexer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipherFromHex(testKeyHex)
	require.NoError(t, err)

	plaintext := []byte("Strep throat is caused by group A Streptococcus.")
	sealed, err := c.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)
	assert.Greater(t, len(sealed), len(plaintext), "sealed blob carries nonce and tag")

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestCipherSealIsRandomized(t *testing.T) {
	c, err := NewCipherFromHex(testKeyHex)
	require.NoError(t, err)

	a, err := c.Seal([]byte("same input"))
	require.NoError(t, err)
	b, err := c.Seal([]byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per seal")
}

func TestCipherRejectsBadKeys(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"not hex", "zz"},
		{"too short", "deadbeef"},
		{"too long", testKeyHex + "00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCipherFromHex(tc.key)
			assert.Error(t, err)
		})
	}
}

func TestCipherOpenRejectsTampering(t *testing.T) {
	c, err := NewCipherFromHex(testKeyHex)
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("original"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestCipherOpenRejectsShortBlob(t *testing.T) {
	c, err := NewCipherFromHex(testKeyHex)
	require.NoError(t, err)

	_, err = c.Open([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestHashHexStable(t *testing.T) {
	a := HashHex([]byte("hello"))
	b := HashHex([]byte("hello"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Equal(t, strings.ToLower(a), a)
	assert.NotEqual(t, a, HashHex([]byte("hello!")))
}

func TestStubEmbedderDeterministic(t *testing.T) {
	e := StubEmbedder{}
	ctx := context.Background()

	a, err := e.Embed(ctx, "sore throat")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "sore throat")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, VectorSize)

	other, err := e.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}
