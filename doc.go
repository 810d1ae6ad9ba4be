// Package authcore provides the authentication and session subsystem for a
// REST API: Argon2id password hashing with timing-attack mitigation, JWT
// access tokens paired with rotating opaque refresh tokens, account lockout
// after repeated failures, and token-based email verification and password
// reset flows.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [Repository] and [Notifier] contracts, and value types (AuthTokens,
// TokenPayload, MetricsSnapshot). Crypto primitives live in password/ and
// jwt/; the PostgreSQL repository lives in postgres/; mail transports live in
// mail/.
//
// # What this package must NOT do
//
//   - Persist or log raw refresh, verification, or reset tokens; only their
//     digests ever reach the [Repository].
//   - Reveal through an error message whether an email address is registered.
//   - Fail an operation because a notification email could not be sent.
package authcore
