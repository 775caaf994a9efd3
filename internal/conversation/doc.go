// ABOUTME: Package doc for the conversation orchestrator
// ABOUTME: Describes the question round trip and its failure semantics

// Package conversation coordinates a single question/answer exchange
// between the ledger and the remote completion call.
//
// The ordering of effects is deliberate: the completion call happens
// before any write, so a failed or timed-out completion leaves the
// ledger exactly as it was. Once the completion succeeds the user turn
// is committed first, then the assistant turn. If the second append
// fails the exchange is reported as a partial append and the trailing
// user turn stays in the ledger, where the next history read will see
// it. The orchestrator does not retry; callers own that policy.
package conversation
