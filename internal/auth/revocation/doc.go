// Package revocation tracks access tokens that were invalidated before
// their natural expiry, e.g. by logout.
//
// Access tokens are otherwise validated statelessly, so the registry is the
// only server-side veto over a signed, unexpired token. Entries carry the
// token's remaining lifetime and disappear on their own once the token
// would have expired anyway.
package revocation
