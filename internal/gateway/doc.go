// ABOUTME: Package doc for the gateway
// ABOUTME: Describes the HTTP surface and error mapping

// Package gateway exposes the conversation service over HTTP.
//
// Routes:
//
//	POST /api/ask                        run one question round trip
//	GET  /api/history/{user_id}/{model}  read a conversation transcript
//	GET  /api/models                     list configured model variants
//	GET  /health                         liveness probe
//
// Error mapping: a failed remote completion returns 502, a committed
// user turn whose assistant reply could not be recorded returns 500,
// and a missing identity returns 404. History reads for unknown users
// return an empty list and do not create the identity.
package gateway
