// Package auth provides account sign-up, login and token validation for PhaseLink.
//
// Every account is bound to one device. A user signs up by presenting the
// device's pairing code; codes are provisioned from configuration at startup.
//
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - HS256 access tokens carrying the username and bound device
//   - SQLite persistence for users and device keys
package auth
