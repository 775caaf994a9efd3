// ABOUTME: Package doc for the indexer
// ABOUTME: States the no-plaintext-at-rest property

// Package indexer prepares document chunks for the vector store.
//
// A document's body is sealed with AES-256-GCM before anything derived
// from it is persisted. The stored point carries the SHA3-256 hash of
// the sealed blob and a caller-redacted excerpt; the plaintext body
// itself is used only in process, to compute the embedding, and is
// never written anywhere.
package indexer
