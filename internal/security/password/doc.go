// Package password implements ticketd's password hashing (bcrypt).
//
// The cost factor is configuration; the stored digest embeds its own salt and
// cost, so verification never needs out-of-band parameters. Malformed digests
// are reported as ErrCorruptDigest and must be treated by callers as a failed
// verification, never as a server fault visible to the client.
package password
