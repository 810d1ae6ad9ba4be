// Package mail provides ready Notifier implementations for the auth engine:
// an SMTP sender for production and a log-only sender for development and
// tests.
//
// # Architecture boundaries
//
// This package formats and delivers messages. It never decides WHEN to send;
// the engine owns that, including the rule that delivery failures must not
// fail the enclosing auth operation.
package mail
