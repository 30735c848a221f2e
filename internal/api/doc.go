// Package api implements the HTTP surface of the Gorp backend.
//
// It exposes session management, streaming chat over SSE, forced-skill
// endpoints, and skill schema discovery. Handlers translate domain errors
// into JSON error responses; streaming errors become SSE error events.
package api
