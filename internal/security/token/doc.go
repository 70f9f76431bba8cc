// Package token provides refresh-token hashing primitives for ticketd.
//
// It is the single source of truth for how refresh tokens are reduced to the
// digests the session store keeps. The raw token is never persisted.
//
// Modes:
//   - Default: SHA-256(token), hex encoded (64 chars).
//   - Keyed: HMAC-SHA256(token, key) when TICKETD_TOKEN_HMAC_KEY is set,
//     so a leaked sessions table alone cannot be used to forge lookups.
package token
