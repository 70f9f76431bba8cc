// Package session implements ticketd's login-session subsystem.
//
// It issues access/refresh token pairs, validates refresh tokens against
// server-side session state, rotates refresh tokens with single-use
// semantics, detects replay of already-rotated tokens, and sweeps expired
// rows in the background.
//
// Only a one-way hash of the refresh token is ever persisted.
package session
