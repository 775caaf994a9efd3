// Package ledger owns the durable mapping from an external identity to an
// ordered message history per model variant.
//
// # Concurrency model
//
// The ledger is called from an arbitrary number of request-handling
// goroutines and performs no in-process locking; every operation may block
// on storage I/O without holding a mutex across the round trip. Correctness
// under races is delegated to the storage layer:
//
//   - Identity creation relies on the external_id uniqueness constraint.
//     The storage adapter reports a conflict as the tagged sentinel
//     ErrDuplicateIdentity, and ResolveIdentity recovers by re-querying the
//     winner's row. This lookup-insert-recover pattern, not a lock, is the
//     concurrency primitive.
//   - Turn ordering relies on a storage-assigned autoincrement sequence.
//     History order always matches the order in which appends committed,
//     with no gaps and no duplicates, even when appends to the same
//     conversation interleave.
//
// # Data model
//
//   - Identity: external_id (unique, caller-supplied) to internal id.
//   - Turn: immutable message (role, content, seq) belonging to one
//     (identity, model variant) conversation. Distinct model variants are
//     fully disjoint partitions of the same identity's history.
//
// Identities and turns are owned exclusively by this package; callers
// mutate them only through ResolveIdentity, AppendTurn and DeleteIdentity.
package ledger
