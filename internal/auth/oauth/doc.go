// Package oauth implements the Google sign-in flow: building the consent
// URL, exchanging the authorization code, and verifying the returned ID
// token before any account is linked or created.
package oauth
