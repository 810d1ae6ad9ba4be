// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a small manager that
// mints and verifies the HS256 access tokens used by the auth engine.
//
// # Architecture boundaries
//
// This package owns token encoding only. Session lookups, revocation, and
// refresh rotation live in authcore; a parsed token is an identity claim,
// not proof that its session still exists.
package jwt
