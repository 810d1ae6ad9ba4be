// Package password implements the credential-hashing primitives of the auth
// subsystem: an Argon2id codec for at-rest password storage and a fast
// SHA-256 digest plus generator for opaque bearer tokens.
//
// # Architecture boundaries
//
// This package owns crypto primitives only. It performs no I/O, holds no
// state beyond cost parameters, and must not import authcore or any sibling
// package.
package password
