// Package identity implements ticketd's credential store.
//
// It owns the User record (local password credentials, linked federated
// identity, role, verification state) and the persistence boundary used by
// the auth HTTP layer.
//
// This package is intentionally dependency-light and security-first.
package identity
