// Package errors provides the structured error type shared by the cloud
// registry, the providers and the HTTP API.
//
// Every error carries a machine-readable code, an HTTP status mapping and a
// retryable flag. Two AppErrors compare equal under errors.Is when their codes
// match, so callers can test against the package-level sentinels exported by
// the cloud package.
package errors
