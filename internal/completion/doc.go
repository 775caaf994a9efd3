// ABOUTME: Package doc for the completion client
// ABOUTME: Notes the opaque-remote-call contract

// Package completion talks to the hosted OpenAI-compatible completion
// endpoint. It resolves model variant codes to backend models, prepends
// the fixed system instruction, and propagates failures without
// retrying; retry and persistence policy live in the caller.
package completion
