// Package server runs the glowbook HTTP API on a Gin engine behind an h2c
// handler.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with the standard error envelope
//   - RequestID: request id generation and propagation
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging with duration tracking
//
// # Endpoints
//
// Health endpoints live in server/endpoint; the marketplace and provider
// administration routes live in server/api.
package server
